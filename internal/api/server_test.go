package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/magneticstudio/catalogd/internal/app/audit"
	"github.com/magneticstudio/catalogd/internal/app/reconciler"
	"github.com/magneticstudio/catalogd/internal/domain"
)

// ─── Fakes ──────────────────────────────────────────────────────────────────

type memSource struct {
	desired []domain.DesiredProduct
}

func (m *memSource) ListDesired(ctx context.Context) ([]domain.DesiredProduct, error) {
	out := make([]domain.DesiredProduct, len(m.desired))
	copy(out, m.desired)
	return out, nil
}

func (m *memSource) WriteBack(ctx context.Context, rowID, productID, priceID string) error {
	for i := range m.desired {
		if m.desired[i].ID == rowID {
			m.desired[i].PlatformProductID = productID
			m.desired[i].PlatformPriceID = priceID
		}
	}
	return nil
}

type memCatalog struct {
	products map[string]*domain.ActualProduct
	prices   []domain.ActualPrice
	nextID   int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{products: map[string]*domain.ActualProduct{}}
}

func (m *memCatalog) ListProducts(ctx context.Context) ([]domain.ActualProduct, error) {
	var out []domain.ActualProduct
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memCatalog) ListPrices(ctx context.Context) ([]domain.ActualPrice, error) {
	return append([]domain.ActualPrice(nil), m.prices...), nil
}

func (m *memCatalog) EnsureProduct(ctx context.Context, spec domain.DesiredProduct) (domain.ActualProduct, error) {
	if spec.PlatformProductID != "" {
		if p, ok := m.products[spec.PlatformProductID]; ok {
			p.Name, p.Description, p.Active = spec.Name, spec.Description, spec.Active
			return *p, nil
		}
	}
	for _, p := range m.products {
		if p.Name == spec.Name {
			p.Description, p.Active = spec.Description, spec.Active
			return *p, nil
		}
	}
	m.nextID++
	p := &domain.ActualProduct{
		ID:          fmt.Sprintf("prod_%d", m.nextID),
		Name:        spec.Name,
		Description: spec.Description,
		Active:      spec.Active,
	}
	m.products[p.ID] = p
	return *p, nil
}

func (m *memCatalog) EnsurePrice(ctx context.Context, productID string, spec domain.DesiredProduct) (domain.ActualPrice, error) {
	for _, pr := range m.prices {
		if pr.ProductID == productID && domain.PriceMatches(spec, pr) {
			return pr, nil
		}
	}
	m.nextID++
	pr := domain.ActualPrice{
		ID:         fmt.Sprintf("price_%d", m.nextID),
		ProductID:  productID,
		UnitAmount: spec.UnitAmount,
		Currency:   spec.Currency,
		Active:     true,
	}
	m.prices = append(m.prices, pr)
	return pr, nil
}

func (m *memCatalog) SetDefaultPrice(ctx context.Context, productID, priceID string) error {
	if p, ok := m.products[productID]; ok {
		p.DefaultPriceID = priceID
	}
	return nil
}

func (m *memCatalog) AttachImage(ctx context.Context, productID string, image []byte) error {
	if p, ok := m.products[productID]; ok {
		p.Images = []string{"https://files.example/img"}
	}
	return nil
}

func newTestServer(t *testing.T, desired ...domain.DesiredProduct) (*httptest.Server, *memCatalog) {
	t.Helper()
	source := &memSource{desired: desired}
	catalog := newMemCatalog()
	rec := reconciler.New(source, catalog, nil, nil)
	srv := NewServer(rec, audit.New(source, catalog))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, catalog
}

func starter() domain.DesiredProduct {
	return domain.DesiredProduct{
		ID:         "recStarter",
		Name:       "Starter Reading",
		Type:       domain.OneTime,
		UnitAmount: 4400,
		Currency:   "usd",
		Active:     true,
	}
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ─── Routes ─────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status=%d body=%v", resp.StatusCode, body)
	}
}

func TestPlanEndpointIsReadOnly(t *testing.T) {
	ts, catalog := newTestServer(t, starter())

	resp, err := http.Get(ts.URL + "/api/plan")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		OK      bool           `json:"ok"`
		Summary domain.Summary `json:"summary"`
	}
	decode(t, resp, &body)

	if !body.OK || body.Summary.ToCreate != 1 {
		t.Errorf("body = %+v", body)
	}
	if len(catalog.products) != 0 {
		t.Error("plan endpoint mutated the platform")
	}
}

func TestRunEndpointExecutes(t *testing.T) {
	ts, catalog := newTestServer(t, starter())

	resp, err := http.Post(ts.URL+"/api/run", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		OK       bool                `json:"ok"`
		Executed bool                `json:"executed"`
		Results  []domain.ItemResult `json:"results"`
	}
	decode(t, resp, &body)

	if !body.OK || !body.Executed || len(body.Results) != 1 {
		t.Fatalf("body = %+v", body)
	}
	if len(catalog.products) != 1 {
		t.Errorf("platform has %d products, want 1", len(catalog.products))
	}
}

func TestRunEndpointDryParam(t *testing.T) {
	ts, catalog := newTestServer(t, starter())

	resp, err := http.Post(ts.URL+"/api/run?dry=true", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		OK       bool `json:"ok"`
		DryRun   bool `json:"dry_run"`
		Executed bool `json:"executed"`
	}
	decode(t, resp, &body)

	if !body.OK || !body.DryRun || body.Executed {
		t.Errorf("body = %+v", body)
	}
	if len(catalog.products) != 0 {
		t.Error("dry run mutated the platform")
	}
}

func TestRunEndpointNameFilter(t *testing.T) {
	other := starter()
	other.ID, other.Name = "recOther", "Deep Dive"
	ts, catalog := newTestServer(t, starter(), other)

	resp, err := http.Post(ts.URL+"/api/run?names=Deep%20Dive", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if len(catalog.products) != 1 {
		t.Fatalf("platform has %d products, want only the filtered one", len(catalog.products))
	}
	for _, p := range catalog.products {
		if p.Name != "Deep Dive" {
			t.Errorf("created %q, want Deep Dive", p.Name)
		}
	}
}

func TestAuditEndpoint(t *testing.T) {
	ts, catalog := newTestServer(t, starter())
	catalog.products["prod_9"] = &domain.ActualProduct{ID: "prod_9", Name: "Orphan", Active: true}

	resp, err := http.Get(ts.URL + "/api/audit")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		OK     bool               `json:"ok"`
		Clean  bool               `json:"clean"`
		Report domain.DriftReport `json:"report"`
	}
	decode(t, resp, &body)

	if !body.OK || body.Clean {
		t.Errorf("body = %+v, want drift", body)
	}
	if len(body.Report.MissingInLedger) != 1 || len(body.Report.MissingInPlatform) != 1 {
		t.Errorf("report = %+v", body.Report)
	}
}

func TestRunsEndpointWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", resp.StatusCode)
	}
}
