package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabimport/internal/core"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		ff     fileFlags
		so     submitOptions
		report string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Validate a file and submit its rows to the table endpoint",
		Long: "Maps, validates and imports a file one record per request. " +
			"Rows the endpoint rejects are listed in the result and, with --report, written to a CSV error report.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(so)
			if err != nil {
				return err
			}
			ctx := core.WithRequester(cmd.Context(), core.Requester{UserAgent: cmd.Root().Name()})

			view, err := openSession(ctx, svc, args[0], ff)
			if err != nil {
				return err
			}
			preview, err := svc.ValidateSession(view.ID)
			if err != nil {
				return err
			}
			start := svc.StartImport
			switch {
			case preview.Session.CanImport:
			case force:
				start = svc.ForceImport
				slog.Warn("importing despite validation problems",
					"errors", len(preview.Errors),
					"missing_required", preview.Session.MissingRequired,
				)
			default:
				if !isJSON(cmd) {
					_ = printValidationErrors(cmd, preview.Errors)
				}
				if missing := preview.Session.MissingRequired; len(missing) > 0 {
					return fmt.Errorf("%w: required columns not mapped: %v", core.ErrImportBlocked, missing)
				}
				return fmt.Errorf("%w: %d validation errors", core.ErrImportBlocked, len(preview.Errors))
			}

			if _, err := start(ctx, view.ID); err != nil {
				return err
			}
			result, err := svc.WaitResult(ctx, view.ID)
			if err != nil {
				return err
			}

			if report != "" {
				if err := writeReport(svc, view.ID, report); err != nil {
					return err
				}
			}

			if isJSON(cmd) {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				cmd.Printf("%d of %d rows imported (%.1f%%)\n",
					result.SuccessfulRows, result.TotalRows, result.SuccessRate())
				if len(result.Errors) > 0 {
					if err := printValidationErrors(cmd, result.Errors); err != nil {
						return err
					}
				}
			}

			if !result.Success {
				return fmt.Errorf("%d rows failed", result.FailedRows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ff.table, "table", "", "Target table name")
	cmd.Flags().StringVar(&ff.template, "template", "", "Mapping template file (JSON)")
	cmd.Flags().StringVar(&so.baseURL, "endpoint-base", "", "Base URL joined with relative table endpoints")
	cmd.Flags().StringVar(&so.token, "token", os.Getenv("SUBMIT_API_TOKEN"), "Bearer token sent with each record")
	cmd.Flags().DurationVar(&so.timeout, "timeout", 30*time.Second, "Per-record request timeout")
	cmd.Flags().IntVar(&so.concurrency, "concurrency", 1, "Records in flight at once; 1 keeps file order")
	cmd.Flags().StringVar(&report, "report", "", "Write a CSV error report to this path")
	cmd.Flags().BoolVar(&force, "force", false, "Submit even when validation fails; the endpoint decides per row")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func writeReport(svc *core.Service, id, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := svc.WriteReport(id, f); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
