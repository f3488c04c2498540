package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Goosie/nostr-object-identity/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, disk space and the registry database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := colorVerdict(out, "ok", verdictPositive)
					if !r.Passed {
						status = colorVerdict(out, "fail", verdictNegative)
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			}
			if !preflight.Passed(results) {
				return errors.New("one or more preflight checks failed")
			}
			return nil
		},
	}
}
