package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Goosie/nostr-object-identity/internal/identity"
)

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	var primaryOnly bool

	cmd := &cobra.Command{
		Use:   "fingerprint <image>",
		Short: "Print the perceptual fingerprint bundle of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.withService(false, func(svc *identity.Service) error {
				bundle, err := svc.Fingerprint(cmd.Context(), data)
				if err != nil {
					return err
				}
				if primaryOnly {
					bundle.Variants = nil
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, bundle)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Fingerprint: %s (%s)\n", bundle.Primary, bundle.Primary.Kind)
				if len(bundle.Variants) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(bundle.Variants))
				for i, v := range bundle.Variants {
					rows = append(rows, []string{strconv.Itoa(i + 1), v.Label(), v.Fingerprint.String()})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Variant", "Fingerprint"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&primaryOnly, "primary", false, "Only compute the primary fingerprint")
	return cmd
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <image> <image>",
		Short: "Measure the fingerprint distance between two images",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := readImage(cmd, args[0])
			if err != nil {
				return err
			}
			right, err := readImage(cmd, args[1])
			if err != nil {
				return err
			}
			return ctx.withService(false, func(svc *identity.Service) error {
				cmp, err := svc.Compare(cmd.Context(), left, right)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, cmp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Left:     %s\n", cmp.Left)
				fmt.Fprintf(out, "Right:    %s\n", cmp.Right)
				if !cmp.Comparable {
					fmt.Fprintf(out, "Distance: n/a (%s vs %s fingerprints)\n", cmp.Left.Kind, cmp.Right.Kind)
					fmt.Fprintln(out, "Verdict:  "+colorVerdict(out, "different", verdictNegative))
					return nil
				}
				fmt.Fprintf(out, "Distance: %d\n", cmp.Distance)
				if cmp.Duplicate {
					fmt.Fprintln(out, "Verdict:  "+colorVerdict(out, "same object", verdictPositive))
				} else {
					fmt.Fprintln(out, "Verdict:  "+colorVerdict(out, "different", verdictNegative))
				}
				return nil
			})
		},
	}
}
