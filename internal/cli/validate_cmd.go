package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabimport/internal/core"
)

func newValidateCmd(opts *options) *cobra.Command {
	var ff fileFlags

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check every row of a file against a table",
		Long:  "Maps and validates a file. Exits non-zero when any cell is invalid or a required column is unmapped.",
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
			preview, err := svc.ValidateSession(view.ID)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				if err := printJSON(cmd.OutOrStdout(), preview.Errors); err != nil {
					return err
				}
			} else if err := printValidationErrors(cmd, preview.Errors); err != nil {
				return err
			}

			if missing := preview.Session.MissingRequired; len(missing) > 0 {
				return fmt.Errorf("required columns not mapped: %v", missing)
			}
			if n := len(preview.Errors); n > 0 {
				return fmt.Errorf("%d validation errors", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ff.table, "table", "", "Target table name")
	cmd.Flags().StringVar(&ff.template, "template", "", "Mapping template file (JSON)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func printValidationErrors(cmd *cobra.Command, errs []core.ValidationError) error {
	if len(errs) == 0 {
		cmd.Println("no validation errors")
		return nil
	}
	rows := make([][]string, len(errs))
	for i, e := range errs {
		rows[i] = []string{strconv.Itoa(e.Row), e.Column, e.Message, fmt.Sprint(valueOrEmpty(e.Value))}
	}
	return printTable(cmd.OutOrStdout(), []string{"ROW", "COLUMN", "ERROR", "VALUE"}, rows)
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
