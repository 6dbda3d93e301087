package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magneticstudio/catalogd/internal/app/reconciler"
	"github.com/magneticstudio/catalogd/internal/domain"
	"github.com/magneticstudio/catalogd/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(auditCmd)

	runCmd.Flags().Bool("dry", false, "Compute and print the plan without executing it")
	runCmd.Flags().StringSlice("name", nil, "Only reconcile the named product(s); repeatable")
}

// ─── plan ───────────────────────────────────────────────────────────────────

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a reconciliation run would do",
	Long: `Read the ledger and the commerce platform, diff them, and print the
planned actions as JSON. Never mutates either system.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	res, err := eng.reconciler.Plan(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"summary": res.Summary,
		"items":   res.Items,
	})
}

// ─── run ────────────────────────────────────────────────────────────────────

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile the platform toward the ledger",
	Long: `Execute one reconciliation run: create missing products, update drifted
fields, create missing prices, point default prices, and attach images.
Safe to re-run; converged products are left untouched.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	dry, _ := cmd.Flags().GetBool("dry")
	names, _ := cmd.Flags().GetStringSlice("name")

	// One-shot runs share the serve process's run history.
	store, err := sqlite.Open(eng.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open operational store: %w", err)
	}
	defer store.Close()

	rec := reconciler.New(eng.source, eng.catalog, eng.images, store)
	res, err := rec.Run(cmd.Context(), reconciler.Options{
		DryRun: dry,
		Names:  names,
	})
	if err != nil {
		return err
	}

	printPlan(res)
	if res.DryRun {
		fmt.Fprintln(os.Stdout, "\nDry run — nothing was changed.")
		return nil
	}

	failed := 0
	for _, item := range res.Results {
		if !item.OK() {
			failed++
			fmt.Fprintf(os.Stdout, "  ✗ %s: %s\n", item.Name, item.Err)
		}
	}
	fmt.Fprintf(os.Stdout, "\nExecuted %d item(s), %d failed.\n", len(res.Results), failed)
	if failed > 0 {
		return fmt.Errorf("%d item(s) failed; re-run to retry the remaining actions", failed)
	}
	return nil
}

// ─── audit ──────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report drift between ledger and platform",
	Long: `Cross-reference ledger rows and platform products and print the drift
report as JSON: products missing on either side, diverged fields, and
ledger rows sharing one platform product. Read-only.`,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	report, err := eng.auditor.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"clean":  report.Clean(),
		"report": report,
	})
}

// ─── Output ─────────────────────────────────────────────────────────────────

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlan(res *reconciler.Result) {
	fmt.Fprintf(os.Stdout, "Plan: %d create, %d update, %d price(s), %d image(s)\n",
		res.Summary.ToCreate, res.Summary.ToUpdate,
		res.Summary.ToPriceCreate, res.Summary.ToImageAttach)

	for _, item := range res.Items {
		if len(item.Actions) == 0 {
			continue
		}
		fmt.Fprintf(os.Stdout, "  %s: %s\n", item.Name, describeActions(item.Actions))
	}
	if res.Summary.Total() == 0 {
		fmt.Fprintln(os.Stdout, "  Nothing to do — platform matches the ledger.")
	}
}

func describeActions(actions []domain.Action) string {
	out := ""
	for i, a := range actions {
		if i > 0 {
			out += ", "
		}
		switch a {
		case domain.CreateProduct:
			out += "create product"
		case domain.UpdateProduct:
			out += "update product"
		case domain.CreatePrice:
			out += "create price"
		case domain.AttachImage:
			out += "attach image"
		default:
			out += string(a)
		}
	}
	return out
}
