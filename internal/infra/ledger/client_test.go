package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/magneticstudio/catalogd/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-key", "appBASE", "Products")
}

// ─── Reader Tests ───────────────────────────────────────────────────────────

func TestListDesiredPaginates(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		calls++
		switch r.URL.Query().Get("offset") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"records": []map[string]any{
					{"id": "rec1", "fields": map[string]any{"Name": "Starter Reading", "Price": 44, "Active": true}},
				},
				"offset": "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"records": []map[string]any{
					{"id": "rec2", "fields": map[string]any{"Name": "Full Reading", "Amount": 11100, "Active": true}},
				},
			})
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	got, err := c.ListDesired(context.Background())
	if err != nil {
		t.Fatalf("ListDesired() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("page fetches = %d, want 2", calls)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].UnitAmount != 4400 {
		t.Errorf("first UnitAmount = %d, want 4400 (whole units ×100)", got[0].UnitAmount)
	}
	if got[1].UnitAmount != 11100 {
		t.Errorf("second UnitAmount = %d, want 11100 (already minor units)", got[1].UnitAmount)
	}
}

func TestListDesiredSkipsNamelessRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "rec1", "fields": map[string]any{"Description": "orphan row"}},
				{"id": "rec2", "fields": map[string]any{"Name": "   "}},
				{"id": "rec3", "fields": map[string]any{"Name": "Kept"}},
			},
		})
	})

	got, err := c.ListDesired(context.Background())
	if err != nil {
		t.Fatalf("ListDesired() error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Kept" {
		t.Errorf("got %+v, want single row named Kept", got)
	}
}

func TestListDesiredFailedPageAborts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := c.ListDesired(context.Background()); err == nil {
		t.Fatal("expected error from failed page fetch")
	}
}

func TestRowNormalization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "rec1", "fields": map[string]any{
					"name":                 "Moon Kit", // lowercase column name
					"type":                 "Recurring",
					"price":                "$19.50",
					"currency":             "USD",
					"interval":             "Month",
					"statement descriptor": "Messy & Magnetic, Inc.",
					"tax behavior":         "Exclusive",
					"metadata":             "tier: gold\nsource: ledger",
					"active":               true,
					"Platform Product ID":  "prod_123",
				}},
			},
		})
	})

	got, err := c.ListDesired(context.Background())
	if err != nil {
		t.Fatalf("ListDesired() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	p := got[0]

	if p.Type != domain.Recurring {
		t.Errorf("Type = %q, want recurring", p.Type)
	}
	if p.UnitAmount != 1950 {
		t.Errorf("UnitAmount = %d, want 1950", p.UnitAmount)
	}
	if p.Currency != "usd" {
		t.Errorf("Currency = %q, want usd", p.Currency)
	}
	if p.Interval != "month" {
		t.Errorf("Interval = %q, want month", p.Interval)
	}
	if p.StatementDescriptor != "MESSY  MAGNETIC INC" {
		t.Errorf("StatementDescriptor = %q", p.StatementDescriptor)
	}
	if p.TaxBehavior != domain.TaxExclusive {
		t.Errorf("TaxBehavior = %q", p.TaxBehavior)
	}
	if p.Metadata["tier"] != "gold" || p.Metadata["source"] != "ledger" {
		t.Errorf("Metadata = %v", p.Metadata)
	}
	if p.PlatformProductID != "prod_123" {
		t.Errorf("PlatformProductID = %q", p.PlatformProductID)
	}
}

func TestOneTimeClearsInterval(t *testing.T) {
	rec := record{ID: "r", Fields: map[string]any{
		"Name":     "Single",
		"Type":     "one-time",
		"Interval": "month", // stale authoring leftover
	}}
	p, ok := rowToDesired(rec)
	if !ok {
		t.Fatal("rowToDesired returned false")
	}
	if p.Interval != "" {
		t.Errorf("Interval = %q, want empty for one-time", p.Interval)
	}
}

// ─── Write-Back Tests ───────────────────────────────────────────────────────

func TestWriteBack(t *testing.T) {
	var gotPath string
	var gotBody map[string]map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	})

	err := c.WriteBack(context.Background(), "rec9", "prod_abc", "price_def")
	if err != nil {
		t.Fatalf("WriteBack() error: %v", err)
	}
	if gotPath != "/v0/appBASE/Products/rec9" {
		t.Errorf("path = %q", gotPath)
	}
	fields := gotBody["fields"]
	if fields["Stripe Product ID"] != "prod_abc" || fields["Stripe Price ID"] != "price_def" {
		t.Errorf("fields = %v", fields)
	}
}

func TestWriteBackNothingToWrite(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when both ids are empty")
	})
	if err := c.WriteBack(context.Background(), "rec1", "", ""); err != nil {
		t.Fatalf("WriteBack() error: %v", err)
	}
}
