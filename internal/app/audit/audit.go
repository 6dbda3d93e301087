// Package audit cross-references ledger and platform state into a drift
// report. Auditing is strictly read-only: it surfaces divergence for
// operators and never mutates either system.
package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/magneticstudio/catalogd/internal/domain"
	"github.com/magneticstudio/catalogd/internal/infra/observability"
)

// Auditor reads both systems and reports drift.
type Auditor struct {
	source  domain.DesiredSource
	catalog domain.Catalog
}

// New creates an auditor over the given readers.
func New(source domain.DesiredSource, catalog domain.Catalog) *Auditor {
	return &Auditor{source: source, catalog: catalog}
}

// Run reads fresh state from both sides and builds the report.
// Drift gauges are updated as a side effect.
func (a *Auditor) Run(ctx context.Context) (domain.DriftReport, error) {
	desired, err := a.source.ListDesired(ctx)
	if err != nil {
		return domain.DriftReport{}, fmt.Errorf("read desired state: %w", err)
	}
	products, err := a.catalog.ListProducts(ctx)
	if err != nil {
		return domain.DriftReport{}, fmt.Errorf("read platform products: %w", err)
	}

	report := Report(desired, products)
	observability.RecordDrift(
		len(report.MissingInLedger),
		len(report.MissingInPlatform),
		len(report.FieldMismatches),
		len(report.DuplicateLinkage),
	)
	return report, nil
}

// Report cross-references the two states. Pure; exported so the CLI and
// tests can audit a snapshot directly.
func Report(desired []domain.DesiredProduct, products []domain.ActualProduct) domain.DriftReport {
	var report domain.DriftReport

	byID := make(map[string]domain.ActualProduct, len(products))
	byName := make(map[string]domain.ActualProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
		byName[domain.NameKey(p.Name)] = p
	}

	// Ledger rows referencing the same platform product.
	linkCount := make(map[string][]string)

	matchedPlatform := make(map[string]bool, len(products))
	for _, d := range desired {
		if d.PlatformProductID != "" {
			linkCount[d.PlatformProductID] = append(linkCount[d.PlatformProductID], d.Name)
		}

		p, ok := match(d, byID, byName)
		if !ok {
			report.MissingInPlatform = append(report.MissingInPlatform, d.Name)
			continue
		}
		matchedPlatform[p.ID] = true

		if d.Description != p.Description {
			report.FieldMismatches = append(report.FieldMismatches, domain.FieldMismatch{
				Name:      d.Name,
				ProductID: p.ID,
				Field:     "description",
				Ledger:    d.Description,
				Platform:  p.Description,
			})
		}
		if d.Active != p.Active {
			report.FieldMismatches = append(report.FieldMismatches, domain.FieldMismatch{
				Name:      d.Name,
				ProductID: p.ID,
				Field:     "active",
				Ledger:    fmt.Sprintf("%t", d.Active),
				Platform:  fmt.Sprintf("%t", p.Active),
			})
		}
	}

	for _, p := range products {
		if !matchedPlatform[p.ID] {
			report.MissingInLedger = append(report.MissingInLedger, p.ID)
		}
	}
	sort.Strings(report.MissingInLedger)

	for id, names := range linkCount {
		if len(names) > 1 {
			report.DuplicateLinkage = append(report.DuplicateLinkage, id)
		}
	}
	sort.Strings(report.DuplicateLinkage)

	return report
}

func match(d domain.DesiredProduct, byID, byName map[string]domain.ActualProduct) (domain.ActualProduct, bool) {
	if d.PlatformProductID != "" {
		if p, ok := byID[d.PlatformProductID]; ok {
			return p, true
		}
	}
	p, ok := byName[domain.NameKey(d.Name)]
	return p, ok
}
