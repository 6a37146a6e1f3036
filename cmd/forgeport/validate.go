package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgeport/forgeport/internal/output"
	"github.com/forgeport/forgeport/internal/render"
	"github.com/forgeport/forgeport/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run pre-flight checks without transferring anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		if err := cfg.RequireSource(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}
		if err := cfg.RequireDestination(); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		w := getWriter(cmd)
		v := validate.New(newSourceClient(cfg), newDestClient(cfg))
		report := v.Run(cmd.Context(), cfg.GitLab.Project)

		if !w.JSONMode {
			fmt.Fprintln(w.Stdout, checksTable(report))
		}

		if report.Blocking() {
			return cmdErr(fmt.Errorf("validation failed, transfer would be blocked"), output.ErrValidation)
		}

		message := "All checks passed"
		if n := report.Warnings(); n > 0 {
			message = fmt.Sprintf("Passed with %d warning(s)", n)
		}
		if w.JSONMode {
			w.Success(report, message)
		} else {
			w.Success(nil, message)
		}
		return nil
	},
}

func checksTable(report *validate.Report) string {
	rows := make([]render.CheckRow, 0, len(report.Checks))
	for _, c := range report.Checks {
		rows = append(rows, render.CheckRow{Name: c.Name, Severity: c.Severity, Detail: c.Detail})
	}
	return render.ChecksTable(rows)
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
