package domain

import "time"

// ─── Plan Types ─────────────────────────────────────────────────────────────

// Action is one convergence step for a single product.
type Action string

const (
	CreateProduct Action = "CREATE_PRODUCT"
	UpdateProduct Action = "UPDATE_PRODUCT"
	CreatePrice   Action = "CREATE_PRICE"
	AttachImage   Action = "ATTACH_IMAGE"
)

// PlanItem is one desired product's computed set of required actions.
// PlanItems are pure, side-effect-free artifacts generated fresh on every
// reconciliation run; items are independent of each other.
type PlanItem struct {
	Name              string         `json:"name"`
	MatchedPlatformID string         `json:"matched_id,omitempty"`
	Actions           []Action       `json:"actions"`
	Desired           DesiredProduct `json:"-"`
	Current           *ActualProduct `json:"-"`
}

// Has reports whether the item includes the given action.
func (p PlanItem) Has(a Action) bool {
	for _, x := range p.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// Summary counts planned actions per type across a whole plan.
type Summary struct {
	ToCreate      int `json:"toCreate"`
	ToUpdate      int `json:"toUpdate"`
	ToPriceCreate int `json:"toPriceCreate"`
	ToImageAttach int `json:"toImageAttach"`
}

// Summarize tallies a plan's actions.
func Summarize(items []PlanItem) Summary {
	var s Summary
	for _, it := range items {
		for _, a := range it.Actions {
			switch a {
			case CreateProduct:
				s.ToCreate++
			case UpdateProduct:
				s.ToUpdate++
			case CreatePrice:
				s.ToPriceCreate++
			case AttachImage:
				s.ToImageAttach++
			}
		}
	}
	return s
}

// Total returns the number of planned actions.
func (s Summary) Total() int {
	return s.ToCreate + s.ToUpdate + s.ToPriceCreate + s.ToImageAttach
}

// ─── Execution Results ──────────────────────────────────────────────────────

// ItemResult records the outcome of executing one PlanItem. Failures are
// isolated per item — one failing product never aborts the rest of a run.
type ItemResult struct {
	Name      string `json:"name"`
	ProductID string `json:"product_id,omitempty"`
	PriceID   string `json:"price_id,omitempty"`
	Attached  bool   `json:"image_attached,omitempty"`
	Err       string `json:"error,omitempty"`
}

// OK reports whether the item converged without error.
func (r ItemResult) OK() bool { return r.Err == "" }

// RunRecord is one appended entry in the operational run log.
type RunRecord struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DryRun         bool      `json:"dry_run"`
	ItemsTotal     int       `json:"items_total"`
	Created        int       `json:"created"`
	Updated        int       `json:"updated"`
	PricesCreated  int       `json:"prices_created"`
	ImagesAttached int       `json:"images_attached"`
	Failed         int       `json:"failed"`
	Error          string    `json:"error,omitempty"`
}

// ─── Audit Types ────────────────────────────────────────────────────────────

// FieldMismatch is one field whose value diverges between ledger and
// platform for a matched product.
type FieldMismatch struct {
	Name      string `json:"name"`
	ProductID string `json:"product_id"`
	Field     string `json:"field"`
	Ledger    string `json:"ledger"`
	Platform  string `json:"platform"`
}

// DriftReport is the read-only cross-reference between ledger and platform.
// Producing it never mutates either system.
type DriftReport struct {
	MissingInLedger   []string        `json:"missingInLedger"`
	MissingInPlatform []string        `json:"missingInPlatform"`
	FieldMismatches   []FieldMismatch `json:"fieldMismatches"`
	DuplicateLinkage  []string        `json:"duplicateLinkage"`
}

// Clean reports whether the two systems are fully converged.
func (d DriftReport) Clean() bool {
	return len(d.MissingInLedger) == 0 &&
		len(d.MissingInPlatform) == 0 &&
		len(d.FieldMismatches) == 0 &&
		len(d.DuplicateLinkage) == 0
}
