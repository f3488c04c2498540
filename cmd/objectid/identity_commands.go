package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Goosie/nostr-object-identity/internal/identity"
	"github.com/Goosie/nostr-object-identity/internal/matching"
)

type checkOutput struct {
	Duplicate bool                  `json:"duplicate"`
	Match     *matching.MatchResult `json:"match,omitempty"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <image>",
		Short: "Report whether an image duplicates a registered object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.withService(true, func(svc *identity.Service) error {
				match, err := svc.Check(cmd.Context(), data)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, checkOutput{Duplicate: match != nil, Match: match})
				}
				out := cmd.OutOrStdout()
				if match == nil {
					fmt.Fprintln(out, colorVerdict(out, "No duplicate", verdictPositive)+": image is not registered")
					return nil
				}
				fmt.Fprintf(out, "%s of %s (%s)\n", colorVerdict(out, "Duplicate", verdictNegative), match.RecordID, describeMatch(match))
				return nil
			})
		},
	}
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var id string
	var label string

	cmd := &cobra.Command{
		Use:   "register <image>",
		Short: "Register a new object unless it is already known",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.withService(true, func(svc *identity.Service) error {
				rec, err := svc.Register(cmd.Context(), data, identity.RegisterOptions{ID: id, Label: label})
				var dup *identity.DuplicateError
				if errors.As(err, &dup) && ctx.jsonOutput() {
					if writeErr := writeJSON(cmd, checkOutput{Duplicate: true, Match: &dup.Match}); writeErr != nil {
						return writeErr
					}
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", colorVerdict(out, "Registered", verdictPositive), rec.ID)
				fmt.Fprintf(out, "Fingerprint: %s\n", rec.Fingerprint)
				if rec.Label != "" {
					fmt.Fprintf(out, "Label:       %s\n", rec.Label)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Record id to use instead of a generated one")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label stored with the record")
	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Verify that a photographed object is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImage(cmd, args[0])
			if err != nil {
				return err
			}
			return ctx.withService(true, func(svc *identity.Service) error {
				report, err := svc.Verify(cmd.Context(), data)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				renderReport(cmd, report, svc.Policy())
				return nil
			})
		},
	}
}

func renderReport(cmd *cobra.Command, report *matching.Report, policy matching.Policy) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Thresholds: direct <= %d, rotation <= %d\n", policy.DirectThreshold, policy.RotationThreshold)
	if report.Matched {
		fmt.Fprintf(out, "%s %s via %s stage (distance %d, confidence %.2f)\n",
			colorVerdict(out, "Verified", verdictPositive), report.RecordID, report.Method, report.Distance, report.Confidence)
		if report.Method == matching.StageRotation {
			fmt.Fprintf(out, "Probe angle: %s degrees\n", strconv.FormatFloat(report.Angle, 'f', -1, 64))
		}
	} else {
		fmt.Fprintln(out, colorVerdict(out, "Not verified", verdictNegative)+": no registered object matched")
	}
	if len(report.Stages) == 0 {
		return
	}
	rows := make([][]string, 0, len(report.Stages))
	for _, stage := range report.Stages {
		rows = append(rows, []string{
			string(stage.Stage),
			yesNo(stage.Matched),
			strconv.Itoa(stage.Compared),
			formatDistance(stage),
			formatSimilarity(stage),
			stage.RecordID,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Matched", "Compared", "Min distance", "Similarity", "Record"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}

func describeMatch(match *matching.MatchResult) string {
	parts := []string{fmt.Sprintf("distance %d", match.Distance)}
	if match.Variant != "" {
		parts = append(parts, "via "+match.Variant)
	}
	return strings.Join(parts, ", ")
}

func formatDistance(stage matching.StageResult) string {
	if stage.Stage == matching.StageColor || stage.Stage == matching.StageEdge {
		return "-"
	}
	if stage.MinDistance < 0 {
		return "n/a"
	}
	return strconv.Itoa(stage.MinDistance)
}

func formatSimilarity(stage matching.StageResult) string {
	if stage.Stage != matching.StageColor && stage.Stage != matching.StageEdge {
		return "-"
	}
	return fmt.Sprintf("%.3f", stage.Similarity)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
