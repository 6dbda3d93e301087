// Package commerce talks to the payments platform that actually sells the
// catalog: live product and price objects, default-price pointers, and
// product images.
//
// Reads use cursor pagination and accumulate flat lists — no filtering
// happens here; matching is the planner's job. Writes are form-encoded and
// implemented as idempotent ensure-primitives (writer.go).
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magneticstudio/catalogd/internal/domain"
)

const pageLimit = 100

// Client is a commerce-platform API client.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// New creates a commerce client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// ─── Wire Types ─────────────────────────────────────────────────────────────

type apiProduct struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Active              bool              `json:"active"`
	StatementDescriptor string            `json:"statement_descriptor"`
	TaxCode             string            `json:"tax_code"`
	Metadata            map[string]string `json:"metadata"`
	Images              []string          `json:"images"`
	DefaultPrice        string            `json:"default_price"`
}

type apiRecurring struct {
	Interval string `json:"interval"`
}

type apiPrice struct {
	ID          string        `json:"id"`
	Product     string        `json:"product"`
	UnitAmount  int64         `json:"unit_amount"`
	Currency    string        `json:"currency"`
	Recurring   *apiRecurring `json:"recurring"`
	TaxBehavior string        `json:"tax_behavior"`
	Active      bool          `json:"active"`
}

type listPage[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

func (p apiProduct) toDomain() domain.ActualProduct {
	return domain.ActualProduct{
		ID:                  p.ID,
		Name:                p.Name,
		Description:         p.Description,
		Active:              p.Active,
		StatementDescriptor: p.StatementDescriptor,
		TaxCode:             p.TaxCode,
		Metadata:            p.Metadata,
		Images:              p.Images,
		DefaultPriceID:      p.DefaultPrice,
	}
}

func (p apiPrice) toDomain() domain.ActualPrice {
	out := domain.ActualPrice{
		ID:          p.ID,
		ProductID:   p.Product,
		UnitAmount:  p.UnitAmount,
		Currency:    p.Currency,
		TaxBehavior: domain.TaxBehavior(p.TaxBehavior),
		Active:      p.Active,
	}
	if p.Recurring != nil {
		out.Interval = p.Recurring.Interval
	}
	return out
}

// ─── Actual-State Reader ────────────────────────────────────────────────────

// ListProducts returns every product, active and inactive, following the
// cursor until the platform reports no further page.
func (c *Client) ListProducts(ctx context.Context) ([]domain.ActualProduct, error) {
	var out []domain.ActualProduct
	after := ""
	for {
		page, err := listAll[apiProduct](ctx, c, "/v1/products", after)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			out = append(out, p.toDomain())
		}
		if !page.HasMore || len(page.Data) == 0 {
			return out, nil
		}
		after = page.Data[len(page.Data)-1].ID
	}
}

// ListPrices returns every price across all products.
func (c *Client) ListPrices(ctx context.Context) ([]domain.ActualPrice, error) {
	var out []domain.ActualPrice
	after := ""
	for {
		page, err := listAll[apiPrice](ctx, c, "/v1/prices", after)
		if err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			out = append(out, p.toDomain())
		}
		if !page.HasMore || len(page.Data) == 0 {
			return out, nil
		}
		after = page.Data[len(page.Data)-1].ID
	}
}

func listAll[T any](ctx context.Context, c *Client, path, after string) (*listPage[T], error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	if after != "" {
		q.Set("starting_after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commerce list %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("list "+path, resp)
	}

	var page listPage[T]
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("commerce list %s: decode: %w", path, err)
	}
	return &page, nil
}

// ─── Raw Writes ─────────────────────────────────────────────────────────────

// postForm issues a form-encoded write and decodes the returned object.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("commerce post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("post "+path, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func productForm(spec domain.DesiredProduct) url.Values {
	form := url.Values{}
	form.Set("name", spec.Name)
	form.Set("active", strconv.FormatBool(spec.Active))
	if spec.Description != "" {
		form.Set("description", spec.Description)
	}
	if spec.StatementDescriptor != "" {
		form.Set("statement_descriptor", spec.StatementDescriptor)
	}
	if spec.TaxCode != "" {
		form.Set("tax_code", spec.TaxCode)
	}
	for _, k := range domain.MetadataKeys(spec.Metadata) {
		form.Set("metadata["+k+"]", spec.Metadata[k])
	}
	return form
}

// CreateProduct creates a new platform product from the desired spec.
func (c *Client) CreateProduct(ctx context.Context, spec domain.DesiredProduct) (domain.ActualProduct, error) {
	var raw apiProduct
	if err := c.postForm(ctx, "/v1/products", productForm(spec), &raw); err != nil {
		return domain.ActualProduct{}, err
	}
	return raw.toDomain(), nil
}

// UpdateProduct updates an existing product in place with the spec's fields.
func (c *Client) UpdateProduct(ctx context.Context, id string, spec domain.DesiredProduct) (domain.ActualProduct, error) {
	var raw apiProduct
	if err := c.postForm(ctx, "/v1/products/"+id, productForm(spec), &raw); err != nil {
		return domain.ActualProduct{}, err
	}
	return raw.toDomain(), nil
}

// CreatePrice creates a new price. Prices are immutable on the platform:
// there is deliberately no UpdatePrice.
func (c *Client) CreatePrice(ctx context.Context, productID string, spec domain.DesiredProduct) (domain.ActualPrice, error) {
	form := url.Values{}
	form.Set("product", productID)
	form.Set("unit_amount", strconv.FormatInt(spec.UnitAmount, 10))
	form.Set("currency", spec.Currency)
	if spec.Type == domain.Recurring && spec.Interval != "" {
		form.Set("recurring[interval]", spec.Interval)
	}
	if spec.TaxBehavior != "" {
		form.Set("tax_behavior", string(spec.TaxBehavior))
	}

	var raw apiPrice
	if err := c.postForm(ctx, "/v1/prices", form, &raw); err != nil {
		return domain.ActualPrice{}, err
	}
	return raw.toDomain(), nil
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, id string) (domain.ActualProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/products/"+id, nil)
	if err != nil {
		return domain.ActualProduct{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ActualProduct{}, fmt.Errorf("commerce get product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ActualProduct{}, domain.ErrNoSuchProduct
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ActualProduct{}, apiError("get product", resp)
	}

	var raw apiProduct
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.ActualProduct{}, err
	}
	return raw.toDomain(), nil
}

// UploadImage uploads image bytes as a product-image file and returns the
// platform file handle.
func (c *Client) UploadImage(ctx context.Context, name string, image []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "product_image"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", name+".png")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(image); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("commerce upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("upload file", resp)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("commerce %s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
