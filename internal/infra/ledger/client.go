// Package ledger reads desired product state from the records workspace
// and writes platform identifiers back after successful creates.
//
// The workspace API is column-oriented: rows arrive as {id, fields} objects
// with staff-chosen column names. Extraction is case-insensitive and
// tolerant of the common renames (Price vs Amount, Stripe vs Platform IDs).
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magneticstudio/catalogd/internal/domain"
)

const pageSize = 100

// Client is a records-workspace API client for one table.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	baseID  string
	table   string

	// Column names used for write-back. The reader accepts aliases; the
	// writer needs one canonical pair.
	productIDColumn string
	priceIDColumn   string
}

// New creates a ledger client.
func New(baseURL, apiKey, baseID, table string) *Client {
	return &Client{
		http:            &http.Client{Timeout: 30 * time.Second},
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		baseID:          baseID,
		table:           table,
		productIDColumn: "Stripe Product ID",
		priceIDColumn:   "Stripe Price ID",
	}
}

// record is one raw workspace row.
type record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ─── Desired-State Reader ───────────────────────────────────────────────────

// ListDesired pages through every row of the table and returns normalized
// product records. Rows without a non-empty name are skipped, not errors.
// A single failed page fetch aborts the whole read — planning never uses a
// partial snapshot.
func (c *Client) ListDesired(ctx context.Context) ([]domain.DesiredProduct, error) {
	var out []domain.DesiredProduct
	offset := ""

	for {
		page, err := c.listPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			p, ok := rowToDesired(rec)
			if !ok {
				continue
			}
			out = append(out, p)
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) listPage(ctx context.Context, offset string) (*listResponse, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if offset != "" {
		q.Set("offset", offset)
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s?%s",
		c.baseURL, c.baseID, url.PathEscape(c.table), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("ledger list: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("ledger list: decode: %w", err)
	}
	return &page, nil
}

// WriteBack persists the platform product and price IDs onto a row.
func (c *Client) WriteBack(ctx context.Context, rowID, productID, priceID string) error {
	fields := map[string]any{}
	if productID != "" {
		fields[c.productIDColumn] = productID
	}
	if priceID != "" {
		fields[c.priceIDColumn] = priceID
	}
	if len(fields) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s/%s",
		c.baseURL, c.baseID, url.PathEscape(c.table), rowID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger write-back: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ledger write-back: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	log.Printf("[ledger] wrote back ids for row %s (product=%s price=%s)", rowID, productID, priceID)
	return nil
}

// ─── Row Normalization ──────────────────────────────────────────────────────

// rowToDesired converts one raw row into a canonical DesiredProduct.
// Returns false when the row has no usable name.
func rowToDesired(rec record) (domain.DesiredProduct, bool) {
	name := strings.TrimSpace(lookupString(rec.Fields, "Name", "Title", "Product Name"))
	if name == "" {
		return domain.DesiredProduct{}, false
	}

	p := domain.DesiredProduct{
		ID:          rec.ID,
		Name:        name,
		Description: lookupString(rec.Fields, "Description", "Details", "Summary"),
		Currency:    strings.ToLower(lookupString(rec.Fields, "Currency")),
		Interval:    strings.ToLower(lookupString(rec.Fields, "Interval", "Billing Interval")),
		TaxCode:     lookupString(rec.Fields, "Tax Code", "TaxCode"),
		ImageFolder: lookupString(rec.Fields, "Image Folder", "Images", "Image"),
		Active:      lookupBool(rec.Fields, "Active", "Enabled", "Live"),
	}

	if p.Currency == "" {
		p.Currency = "usd"
	}

	switch strings.ToLower(lookupString(rec.Fields, "Type", "Product Type", "Billing Type")) {
	case "recurring", "subscription":
		p.Type = domain.Recurring
		if p.Interval == "" {
			p.Interval = "month"
		}
	default:
		p.Type = domain.OneTime
		p.Interval = ""
	}

	if raw, ok := lookupNumber(rec.Fields, "Price", "Amount", "Unit Amount"); ok {
		p.UnitAmount = domain.NormalizeAmount(raw)
	}

	// Always sanitized regardless of source formatting.
	p.StatementDescriptor = domain.SanitizeStatementDescriptor(
		lookupString(rec.Fields, "Statement Descriptor", "Descriptor"))

	switch strings.ToLower(lookupString(rec.Fields, "Tax Behavior", "TaxBehavior")) {
	case "inclusive":
		p.TaxBehavior = domain.TaxInclusive
	case "exclusive":
		p.TaxBehavior = domain.TaxExclusive
	case "unspecified":
		p.TaxBehavior = domain.TaxUnspecified
	}

	p.Metadata = domain.ParseMetadata(lookupString(rec.Fields, "Metadata", "Meta"))

	p.PlatformProductID = lookupString(rec.Fields,
		"Stripe Product ID", "Platform Product ID", "Product ID")
	p.PlatformPriceID = lookupString(rec.Fields,
		"Stripe Price ID", "Platform Price ID", "Price ID")

	return p, true
}

// lookup finds a field value by exact name first, then case-insensitively,
// across the given aliases in order.
func lookup(fields map[string]any, aliases ...string) (any, bool) {
	for _, a := range aliases {
		if v, ok := fields[a]; ok {
			return v, true
		}
	}
	for _, a := range aliases {
		for k, v := range fields {
			if strings.EqualFold(strings.TrimSpace(k), a) {
				return v, true
			}
		}
	}
	return nil, false
}

func lookupString(fields map[string]any, aliases ...string) string {
	v, ok := lookup(fields, aliases...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func lookupNumber(fields map[string]any, aliases ...string) (float64, bool) {
	v, ok := lookup(fields, aliases...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(t, "$"))
		s = strings.ReplaceAll(s, ",", "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func lookupBool(fields map[string]any, aliases ...string) bool {
	v, ok := lookup(fields, aliases...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "yes" || s == "checked" || s == "1"
	case float64:
		return t != 0
	}
	return false
}
