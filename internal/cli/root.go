// Package cli implements importctl, which runs the import pipeline against
// local files without the web server.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabimport/internal/core"
	"github.com/JonMunkholm/tabimport/internal/logging"
	"github.com/JonMunkholm/tabimport/internal/schema"
	"github.com/JonMunkholm/tabimport/internal/store"
	"github.com/JonMunkholm/tabimport/internal/submit"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// options are the persistent flags shared by every command.
type options struct {
	catalog  string
	output   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Map, validate and import spreadsheet files",
		Long:          "Runs the tabular import pipeline on local CSV and XLSX files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(opts.output); err != nil {
				return err
			}
			slog.SetDefault(slog.New(logging.NewHandler(cmd.ErrOrStderr(), opts.logLevel, "text")))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.catalog, "catalog", "", "Table catalog file (YAML); built-in tables when empty")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newTablesCmd(opts),
		newMapCmd(opts),
		newValidateCmd(opts),
		newRunCmd(opts),
	)
	return rootCmd
}

func (o *options) loadCatalog() (*schema.Catalog, error) {
	if strings.TrimSpace(o.catalog) == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(o.catalog)
}

// submitOptions configure the client used by the run command.
type submitOptions struct {
	baseURL     string
	token       string
	timeout     time.Duration
	concurrency int
}

// newService builds an in-process service with in-memory stores.
func (o *options) newService(so submitOptions) (*core.Service, error) {
	catalog, err := o.loadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	client, err := submit.New(submit.Config{
		BaseURL:  so.baseURL,
		Timeout:  so.timeout,
		APIToken: so.token,
	})
	if err != nil {
		return nil, err
	}
	return core.NewService(catalog, core.Options{
		Templates:         store.NewMemoryTemplates(),
		Audit:             store.NewMemoryAudit(1),
		Submitter:         client,
		SubmitConcurrency: so.concurrency,
	})
}
