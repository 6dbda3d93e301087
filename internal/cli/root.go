// Package cli implements the catalogd command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magneticstudio/catalogd/internal/app/audit"
	"github.com/magneticstudio/catalogd/internal/app/reconciler"
	"github.com/magneticstudio/catalogd/internal/daemon"
	"github.com/magneticstudio/catalogd/internal/domain"
	"github.com/magneticstudio/catalogd/internal/infra/commerce"
	"github.com/magneticstudio/catalogd/internal/infra/images"
	"github.com/magneticstudio/catalogd/internal/infra/ledger"
)

var rootCmd = &cobra.Command{
	Use:   "catalogd",
	Short: "Catalog reconciliation engine",
	Long: `catalogd keeps a commerce platform's product catalog converged with a
records-workspace ledger. The ledger is the desired state; catalogd reads
both sides, computes a plan, and applies only the missing changes.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ─── Wiring ─────────────────────────────────────────────────────────────────

// engine bundles the wired application services for one command invocation.
type engine struct {
	cfg        daemon.Config
	source     domain.DesiredSource
	catalog    domain.Catalog
	images     domain.ImageSource
	reconciler *reconciler.Reconciler
	auditor    *audit.Auditor
}

// buildEngine loads config and wires infrastructure clients.
// The operational store is opened per command; the base reconciler here
// runs without persistence.
func buildEngine() (*engine, error) {
	cfg, err := daemon.Load(daemon.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w (edit %s)", err, daemon.ConfigPath())
	}

	source := ledger.New(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.BaseID, cfg.Ledger.Table)
	catalog := commerce.New(cfg.Commerce.BaseURL, cfg.Commerce.APIKey)
	resolver := images.New(images.Config{
		DriveBaseURL:      cfg.Images.DriveBaseURL,
		DriveAPIKey:       cfg.Images.DriveAPIKey,
		RootFolder:        cfg.Images.RootFolder,
		GenerationBaseURL: cfg.Images.GenerationBaseURL,
		GenerationAPIKey:  cfg.Images.GenerationAPIKey,
		StylePrompt:       cfg.Images.StylePrompt,
	}, catalog)

	return &engine{
		cfg:        cfg,
		source:     source,
		catalog:    catalog,
		images:     resolver,
		reconciler: reconciler.New(source, catalog, resolver, nil),
		auditor:    audit.New(source, catalog),
	}, nil
}
