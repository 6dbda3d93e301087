// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ─── Product Types ──────────────────────────────────────────────────────────

// ProductType distinguishes one-time purchases from recurring subscriptions.
type ProductType string

const (
	OneTime   ProductType = "one-time"
	Recurring ProductType = "recurring"
)

// TaxBehavior mirrors the commerce platform's price tax handling.
type TaxBehavior string

const (
	TaxInclusive   TaxBehavior = "inclusive"
	TaxExclusive   TaxBehavior = "exclusive"
	TaxUnspecified TaxBehavior = "unspecified"
)

// DesiredProduct is one ledger row normalized into canonical form.
// The ledger is always the desired state; the commerce platform is
// converged toward it, never the other way around.
type DesiredProduct struct {
	ID                  string            `json:"id"` // ledger row id
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Type                ProductType       `json:"type"`
	UnitAmount          int64             `json:"unit_amount"` // minor currency units
	Currency            string            `json:"currency"`    // lowercase ISO code
	Interval            string            `json:"interval,omitempty"`
	Active              bool              `json:"active"`
	StatementDescriptor string            `json:"statement_descriptor,omitempty"`
	TaxBehavior         TaxBehavior       `json:"tax_behavior,omitempty"`
	TaxCode             string            `json:"tax_code,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	ImageFolder         string            `json:"image_folder,omitempty"`
	PlatformProductID   string            `json:"platform_product_id,omitempty"`
	PlatformPriceID     string            `json:"platform_price_id,omitempty"`
}

// ActualProduct mirrors a product object read from the commerce platform.
type ActualProduct struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Description         string            `json:"description,omitempty"`
	Active              bool              `json:"active"`
	StatementDescriptor string            `json:"statement_descriptor,omitempty"`
	TaxCode             string            `json:"tax_code,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Images              []string          `json:"images,omitempty"`
	DefaultPriceID      string            `json:"default_price,omitempty"`
}

// ActualPrice mirrors a price object read from the commerce platform.
// Prices are immutable once created — amount/currency/interval are never
// mutated; a changed price always becomes a new price object.
type ActualPrice struct {
	ID          string      `json:"id"`
	ProductID   string      `json:"product"`
	UnitAmount  int64       `json:"unit_amount"`
	Currency    string      `json:"currency"`
	Interval    string      `json:"interval,omitempty"`
	TaxBehavior TaxBehavior `json:"tax_behavior,omitempty"`
	Active      bool        `json:"active"`
}

// ─── Normalization ──────────────────────────────────────────────────────────

// minorUnitThreshold is the pivot of the authored-price heuristic.
const minorUnitThreshold = 1000

// NormalizeAmount interprets a raw authored price value as minor currency
// units. Values below 1000 are treated as whole currency units and
// multiplied by 100; values at or above 1000 are assumed already minor
// units.
//
// Known ambiguity: a legitimately authored minor-unit value under 1000
// (e.g. a $9.00 price stored as 900) is misread as 900 whole units. The
// heuristic is preserved deliberately; ledger authors write whole units
// below 1000 and minor units above it.
func NormalizeAmount(raw float64) int64 {
	if raw < minorUnitThreshold {
		return int64(math.Round(raw * 100))
	}
	return int64(math.Round(raw))
}

// SanitizeStatementDescriptor normalizes a statement descriptor the way the
// commerce platform requires: uppercase, letters/digits/spaces only,
// truncated to 22 characters, trimmed.
func SanitizeStatementDescriptor(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 22 {
		out = out[:22]
	}
	return strings.TrimSpace(out)
}

// ParseMetadata parses a free-text metadata field. It first attempts a JSON
// object parse; on failure it falls back to "key: value" lines separated by
// newlines or commas. Unparsable remainders are dropped silently. Returns
// nil when nothing usable is found.
func ParseMetadata(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		out := make(map[string]string, len(obj))
		for k, v := range obj {
			switch t := v.(type) {
			case string:
				out[k] = t
			case float64:
				out[k] = trimFloat(t)
			case bool:
				if t {
					out[k] = "true"
				} else {
					out[k] = "false"
				}
			}
		}
		if len(out) > 0 {
			return out
		}
		return nil
	}

	// Fallback: key: value pairs split on newlines or commas.
	out := make(map[string]string)
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ','
	}) {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ─── Comparison Helpers ─────────────────────────────────────────────────────

// NameKey normalizes a product name for matching: trimmed and lowercased.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MetadataEqual reports deep equality of two metadata maps, treating nil
// and empty as equal.
func MetadataEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// PriceMatches reports whether an existing platform price exactly satisfies
// the desired tuple: unit amount, currency, interval presence-and-value,
// and tax-behavior presence-and-value. A matching price is reused instead
// of creating a new one.
func PriceMatches(d DesiredProduct, p ActualPrice) bool {
	if p.UnitAmount != d.UnitAmount {
		return false
	}
	if !strings.EqualFold(p.Currency, d.Currency) {
		return false
	}
	wantInterval := ""
	if d.Type == Recurring {
		wantInterval = d.Interval
	}
	if p.Interval != wantInterval {
		return false
	}
	if d.TaxBehavior != "" && p.TaxBehavior != d.TaxBehavior {
		return false
	}
	if d.TaxBehavior == "" && p.TaxBehavior != "" && p.TaxBehavior != TaxUnspecified {
		return false
	}
	return true
}

// MetadataKeys returns the sorted keys of a metadata map.
// Useful for deterministic encoding and logging.
func MetadataKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
