package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the target tables in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			tables := catalog.All()
			if isJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), tables)
			}

			rows := make([][]string, len(tables))
			for i, t := range tables {
				endpoint := t.URLEndpoint
				if endpoint == "" {
					endpoint = "-"
				}
				rows[i] = []string{
					t.Name,
					t.DisplayName,
					strconv.Itoa(len(t.Columns)),
					strconv.Itoa(len(t.RequiredColumns())),
					endpoint,
				}
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "DISPLAY NAME", "COLUMNS", "REQUIRED", "ENDPOINT"}, rows)
		},
	}
}
