// Package reconciler runs the read-plan-execute cycle that converges the
// commerce platform toward the ledger's declared intent.
//
// Runs are serialized: an advisory in-process lock covers the whole cycle
// and concurrent invocations are rejected rather than queued. Item
// execution is isolated — one failing product never aborts the rest of a
// run; operators get a per-item result list instead of a thrown batch.
package reconciler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magneticstudio/catalogd/internal/app/planner"
	"github.com/magneticstudio/catalogd/internal/domain"
	"github.com/magneticstudio/catalogd/internal/infra/observability"
)

// Reconciler orchestrates reconciliation runs.
type Reconciler struct {
	mu      sync.Mutex // advisory lock serializing runs
	source  domain.DesiredSource
	catalog domain.Catalog
	images  domain.ImageSource
	runlog  domain.RunLog // optional
}

// New creates a reconciler. runlog may be nil (runs are not persisted).
func New(source domain.DesiredSource, catalog domain.Catalog, images domain.ImageSource, runlog domain.RunLog) *Reconciler {
	return &Reconciler{
		source:  source,
		catalog: catalog,
		images:  images,
		runlog:  runlog,
	}
}

// Options controls one reconciliation run.
type Options struct {
	DryRun bool
	Names  []string // optional product-name filter, case-insensitive
}

// Result is the outcome of one run.
type Result struct {
	RunID    string              `json:"run_id"`
	DryRun   bool                `json:"dry_run"`
	Summary  domain.Summary      `json:"summary"`
	Items    []domain.PlanItem   `json:"items"`
	Results  []domain.ItemResult `json:"results,omitempty"`
	Executed bool                `json:"executed"`
}

// ─── Planning ───────────────────────────────────────────────────────────────

// snapshot reads both systems. State reads happen-before planning; a single
// failed page fetch aborts the run so planning never sees a partial
// snapshot.
func (r *Reconciler) snapshot(ctx context.Context) ([]domain.DesiredProduct, []domain.ActualProduct, []domain.ActualPrice, error) {
	desired, err := r.source.ListDesired(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read desired state: %w", err)
	}
	products, err := r.catalog.ListProducts(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read platform products: %w", err)
	}
	prices, err := r.catalog.ListPrices(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read platform prices: %w", err)
	}
	return desired, products, prices, nil
}

// Plan computes a fresh plan without executing anything.
// Always safe to call and retry; never mutates either system.
func (r *Reconciler) Plan(ctx context.Context) (*Result, error) {
	desired, products, prices, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	items := planner.Plan(desired, products, prices)
	return &Result{
		RunID:   uuid.NewString(),
		DryRun:  true,
		Summary: domain.Summarize(items),
		Items:   items,
	}, nil
}

// ─── Execution ──────────────────────────────────────────────────────────────

// Run performs one reconciliation cycle. A fresh plan is always computed
// first; with DryRun the plan is returned unexecuted. Re-running after a
// partial failure re-plans from current actual state and only performs the
// actions still needed.
//
// Returns domain.ErrRunInProgress when another run holds the lock.
func (r *Reconciler) Run(ctx context.Context, opts Options) (*Result, error) {
	if !r.mu.TryLock() {
		observability.RunsTotal.WithLabelValues(mode(opts.DryRun), "rejected").Inc()
		return nil, domain.ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := time.Now()
	res, err := r.runLocked(ctx, opts)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RunsTotal.WithLabelValues(mode(opts.DryRun), outcome).Inc()
	observability.RunDuration.Observe(time.Since(started).Seconds())

	if r.runlog != nil && res != nil {
		rec := buildRecord(res, started, time.Now(), err)
		if logErr := r.runlog.AppendRun(rec, res.Results); logErr != nil {
			log.Printf("[reconciler] append run log: %v", logErr)
		}
	}
	return res, err
}

func (r *Reconciler) runLocked(ctx context.Context, opts Options) (*Result, error) {
	res, err := r.Plan(ctx)
	if err != nil {
		return nil, err
	}
	res.DryRun = opts.DryRun

	items := filterItems(res.Items, opts.Names)
	res.Items = items
	res.Summary = domain.Summarize(items)

	if opts.DryRun {
		log.Printf("[reconciler] dry run %s: %d items, %d actions planned",
			res.RunID, len(items), res.Summary.Total())
		return res, nil
	}

	res.Executed = true
	for _, item := range items {
		if len(item.Actions) == 0 {
			continue
		}
		result := r.executeItem(ctx, item)
		res.Results = append(res.Results, result)
		if !result.OK() {
			observability.ItemFailures.Inc()
			log.Printf("[reconciler] item %q failed: %s", item.Name, result.Err)
		}
	}

	log.Printf("[reconciler] run %s: %d items, %d executed, %d failed",
		res.RunID, len(items), len(res.Results), countFailed(res.Results))
	return res, nil
}

// executeItem converges one product. Failures are captured, never thrown:
// the remaining items in the run still execute.
func (r *Reconciler) executeItem(ctx context.Context, item domain.PlanItem) domain.ItemResult {
	result := domain.ItemResult{Name: item.Name}
	desired := item.Desired

	product, err := r.catalog.EnsureProduct(ctx, desired)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.ProductID = product.ID
	if item.Has(domain.CreateProduct) {
		observability.ActionsExecuted.WithLabelValues(string(domain.CreateProduct)).Inc()
	} else if item.Has(domain.UpdateProduct) {
		observability.ActionsExecuted.WithLabelValues(string(domain.UpdateProduct)).Inc()
	}

	price, err := r.catalog.EnsurePrice(ctx, product.ID, desired)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	result.PriceID = price.ID
	if item.Has(domain.CreatePrice) {
		observability.ActionsExecuted.WithLabelValues(string(domain.CreatePrice)).Inc()
	}

	if err := r.catalog.SetDefaultPrice(ctx, product.ID, price.ID); err != nil {
		result.Err = err.Error()
		return result
	}

	if item.Has(domain.AttachImage) && r.images != nil {
		// Image resolution is non-fatal by design: a nil image means
		// "no image this run" and the action retries next reconciliation.
		img, _ := r.images.Resolve(ctx, desired.Name, desired.ImageFolder, product.ID)
		if img != nil {
			if err := r.catalog.AttachImage(ctx, product.ID, img); err != nil {
				result.Err = err.Error()
				return result
			}
			result.Attached = true
			observability.ActionsExecuted.WithLabelValues(string(domain.AttachImage)).Inc()
		}
	}

	// Persist platform ids so the next run matches by id, not name.
	if desired.PlatformProductID != product.ID || desired.PlatformPriceID != price.ID {
		if err := r.source.WriteBack(ctx, desired.ID, product.ID, price.ID); err != nil {
			result.Err = err.Error()
			return result
		}
	}

	return result
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func filterItems(items []domain.PlanItem, names []string) []domain.PlanItem {
	if len(names) == 0 {
		return items
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[domain.NameKey(n)] = true
	}
	var out []domain.PlanItem
	for _, it := range items {
		if want[domain.NameKey(it.Name)] {
			out = append(out, it)
		}
	}
	return out
}

func buildRecord(res *Result, started, finished time.Time, runErr error) domain.RunRecord {
	rec := domain.RunRecord{
		ID:         res.RunID,
		StartedAt:  started,
		FinishedAt: finished,
		DryRun:     res.DryRun,
		ItemsTotal: len(res.Items),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	for _, item := range res.Items {
		for _, a := range item.Actions {
			switch a {
			case domain.CreateProduct:
				rec.Created++
			case domain.UpdateProduct:
				rec.Updated++
			case domain.CreatePrice:
				rec.PricesCreated++
			case domain.AttachImage:
				rec.ImagesAttached++
			}
		}
	}
	rec.Failed = countFailed(res.Results)
	return rec
}

func countFailed(results []domain.ItemResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}

func mode(dry bool) string {
	if dry {
		return "dry"
	}
	return "execute"
}
