package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// DesiredSource abstracts the records workspace holding staff-authored
// product intent.
type DesiredSource interface {
	// ListDesired pages through every ledger row and returns normalized
	// records. Rows without a non-empty name are skipped.
	ListDesired(ctx context.Context) ([]DesiredProduct, error)

	// WriteBack persists platform identifiers onto a ledger row after a
	// successful create, so subsequent runs match by id rather than name.
	WriteBack(ctx context.Context, rowID, productID, priceID string) error
}

// Catalog abstracts the commerce platform's product and price objects.
type Catalog interface {
	// ListProducts returns all products, active and inactive.
	ListProducts(ctx context.Context) ([]ActualProduct, error)

	// ListPrices returns all prices across all products.
	ListPrices(ctx context.Context) ([]ActualPrice, error)

	// EnsureProduct finds a product by id (if set) or exact name and
	// updates it in place, or creates it. Idempotent.
	EnsureProduct(ctx context.Context, spec DesiredProduct) (ActualProduct, error)

	// EnsurePrice returns an existing price whose tuple exactly matches the
	// spec, or creates a new one. Never mutates an existing price.
	EnsurePrice(ctx context.Context, productID string, spec DesiredProduct) (ActualPrice, error)

	// SetDefaultPrice points the product's default price. No-op when the
	// pointer already matches.
	SetDefaultPrice(ctx context.Context, productID, priceID string) error

	// AttachImage uploads the image and sets it as the product's sole
	// image reference.
	AttachImage(ctx context.Context, productID string, image []byte) error
}

// ImageSource resolves product artwork through a fallback chain.
// A nil result with nil error means "no image this run" — the attach
// action becomes a no-op and is retried on the next reconciliation.
type ImageSource interface {
	Resolve(ctx context.Context, name, imageFolder, platformProductID string) ([]byte, error)
}

// RunLog records completed reconciliation runs for operators.
type RunLog interface {
	AppendRun(rec RunRecord, items []ItemResult) error
	RecentRuns(limit int) ([]RunRecord, error)
}
