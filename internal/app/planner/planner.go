// Package planner computes the field-level diff between desired ledger
// state and actual platform state.
//
// Plan is a pure function of the two snapshots: it performs no I/O and
// emits side-effect-free PlanItems. Items are independent of each other and
// safely reorderable; execution belongs to the reconciler.
package planner

import (
	"github.com/magneticstudio/catalogd/internal/domain"
)

// Plan compares every desired product against the actual catalog and
// returns one PlanItem per desired product, in input order.
//
// Matching per item: platform product id first, then case-insensitive
// trimmed name equality. Unmatched products get the fixed action sequence
// CREATE_PRODUCT, CREATE_PRICE, ATTACH_IMAGE.
func Plan(desired []domain.DesiredProduct, products []domain.ActualProduct, prices []domain.ActualPrice) []domain.PlanItem {
	byID := make(map[string]*domain.ActualProduct, len(products))
	byName := make(map[string]*domain.ActualProduct, len(products))
	for i := range products {
		p := &products[i]
		byID[p.ID] = p
		byName[domain.NameKey(p.Name)] = p
	}

	pricesByProduct := make(map[string][]domain.ActualPrice)
	for _, p := range prices {
		pricesByProduct[p.ProductID] = append(pricesByProduct[p.ProductID], p)
	}

	items := make([]domain.PlanItem, 0, len(desired))
	for _, d := range desired {
		items = append(items, planOne(d, byID, byName, pricesByProduct))
	}
	return items
}

func planOne(
	d domain.DesiredProduct,
	byID, byName map[string]*domain.ActualProduct,
	pricesByProduct map[string][]domain.ActualPrice,
) domain.PlanItem {
	item := domain.PlanItem{Name: d.Name, Desired: d}

	var match *domain.ActualProduct
	if d.PlatformProductID != "" {
		match = byID[d.PlatformProductID]
	}
	if match == nil {
		match = byName[domain.NameKey(d.Name)]
	}

	if match == nil {
		// New product: image attach is always attempted.
		item.Actions = []domain.Action{domain.CreateProduct, domain.CreatePrice, domain.AttachImage}
		return item
	}

	item.MatchedPlatformID = match.ID
	item.Current = match

	if productNeedsUpdate(d, *match) {
		item.Actions = append(item.Actions, domain.UpdateProduct)
	}

	havePrice := false
	for _, p := range pricesByProduct[match.ID] {
		if domain.PriceMatches(d, p) {
			havePrice = true
			break
		}
	}
	if !havePrice {
		item.Actions = append(item.Actions, domain.CreatePrice)
	}

	if len(match.Images) == 0 {
		item.Actions = append(item.Actions, domain.AttachImage)
	}

	return item
}

// productNeedsUpdate reports whether any compared field diverges.
// Tax code is only compared when the ledger specifies one.
func productNeedsUpdate(d domain.DesiredProduct, a domain.ActualProduct) bool {
	if d.Name != a.Name {
		return true
	}
	if d.Description != a.Description {
		return true
	}
	if d.Active != a.Active {
		return true
	}
	if d.StatementDescriptor != a.StatementDescriptor {
		return true
	}
	if d.TaxCode != "" && d.TaxCode != a.TaxCode {
		return true
	}
	if !domain.MetadataEqual(d.Metadata, a.Metadata) {
		return true
	}
	return false
}
