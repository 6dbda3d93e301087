package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Configuration errors — fatal, surfaced before any reads.
	ErrMissingLedgerKey   = errors.New("ledger API key is not configured")
	ErrMissingLedgerTable = errors.New("ledger base or table is not configured")
	ErrMissingCommerceKey = errors.New("commerce platform API key is not configured")

	// Reconciliation errors
	ErrRunInProgress = errors.New("a reconciliation run is already in progress")
	ErrNoSuchProduct = errors.New("product not found on the commerce platform")

	// Image resolution — the chain degrades to nil rather than failing a run.
	ErrNoImage = errors.New("no image could be resolved")
)
