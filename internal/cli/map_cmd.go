package cli

import (
	"github.com/spf13/cobra"
)

func newMapCmd(opts *options) *cobra.Command {
	var ff fileFlags

	cmd := &cobra.Command{
		Use:   "map <file>",
		Short: "Show how a file's headers map onto a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.newService(submitOptions{})
			if err != nil {
				return err
			}
			view, err := openSession(cmd.Context(), svc, args[0], ff)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), view.Mappings)
			}
			rows := make([][]string, len(view.Mappings))
			for i, m := range view.Mappings {
				target := m.Target()
				switch {
				case m.Skip:
					target = "(skipped)"
				case !m.Mapped():
					target = "-"
				}
				rows[i] = []string{m.FileHeader, target}
			}
			if err := printTable(cmd.OutOrStdout(), []string{"HEADER", "COLUMN"}, rows); err != nil {
				return err
			}
			if len(view.MissingRequired) > 0 {
				cmd.PrintErrf("required columns not mapped: %v\n", view.MissingRequired)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ff.table, "table", "", "Target table name")
	cmd.Flags().StringVar(&ff.template, "template", "", "Mapping template file (JSON)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
