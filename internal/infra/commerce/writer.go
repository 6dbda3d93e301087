package commerce

import (
	"context"
	"errors"
	"log"
	"net/url"

	"github.com/magneticstudio/catalogd/internal/domain"
)

// ─── Idempotent Writer Primitives ───────────────────────────────────────────
// Each primitive re-invoked with identical inputs produces no additional
// platform objects. Existence checks go through fresh platform reads, so a
// re-run after a partial failure only performs the actions still needed.

// EnsureProduct finds a product by id (if the spec carries one) or by exact
// name among all products, updates it in place, or creates it when absent.
func (c *Client) EnsureProduct(ctx context.Context, spec domain.DesiredProduct) (domain.ActualProduct, error) {
	if spec.PlatformProductID != "" {
		existing, err := c.GetProduct(ctx, spec.PlatformProductID)
		if err == nil {
			return c.UpdateProduct(ctx, existing.ID, spec)
		}
		if !errors.Is(err, domain.ErrNoSuchProduct) {
			return domain.ActualProduct{}, err
		}
		// Stale id on the ledger row; fall through to name matching.
		log.Printf("[commerce] product %s gone, rematching %q by name", spec.PlatformProductID, spec.Name)
	}

	products, err := c.ListProducts(ctx)
	if err != nil {
		return domain.ActualProduct{}, err
	}
	for _, p := range products {
		if p.Name == spec.Name {
			return c.UpdateProduct(ctx, p.ID, spec)
		}
	}

	created, err := c.CreateProduct(ctx, spec)
	if err != nil {
		return domain.ActualProduct{}, err
	}
	log.Printf("[commerce] created product %s (%q)", created.ID, created.Name)
	return created, nil
}

// EnsurePrice returns the product's existing price whose tuple exactly
// matches the spec, or creates a new one. Existing prices are never
// mutated — a changed amount always becomes a new price object.
func (c *Client) EnsurePrice(ctx context.Context, productID string, spec domain.DesiredProduct) (domain.ActualPrice, error) {
	prices, err := c.ListPrices(ctx)
	if err != nil {
		return domain.ActualPrice{}, err
	}
	for _, p := range prices {
		if p.ProductID == productID && domain.PriceMatches(spec, p) {
			return p, nil
		}
	}

	created, err := c.CreatePrice(ctx, productID, spec)
	if err != nil {
		return domain.ActualPrice{}, err
	}
	log.Printf("[commerce] created price %s for product %s (%d %s)",
		created.ID, productID, created.UnitAmount, created.Currency)
	return created, nil
}

// SetDefaultPrice points the product's default price at priceID.
// No-op when the pointer already matches.
func (c *Client) SetDefaultPrice(ctx context.Context, productID, priceID string) error {
	current, err := c.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if current.DefaultPriceID == priceID {
		return nil
	}

	form := url.Values{}
	form.Set("default_price", priceID)
	return c.postForm(ctx, "/v1/products/"+productID, form, nil)
}

// AttachImage uploads the image and sets it as the product's sole image
// reference.
func (c *Client) AttachImage(ctx context.Context, productID string, image []byte) error {
	fileID, err := c.UploadImage(ctx, productID, image)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("images[]", fileID)
	if err := c.postForm(ctx, "/v1/products/"+productID, form, nil); err != nil {
		return err
	}
	log.Printf("[commerce] attached image %s to product %s", fileID, productID)
	return nil
}
