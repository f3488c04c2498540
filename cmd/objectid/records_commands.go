package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Goosie/nostr-object-identity/internal/identity"
	"github.com/Goosie/nostr-object-identity/internal/phash"
	"github.com/Goosie/nostr-object-identity/internal/registry"
	"github.com/Goosie/nostr-object-identity/internal/services"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record"},
		Short:   "Inspect and maintain the object registry",
	}
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsRemoveCommand(ctx))
	return recordsCmd
}

// withRegistry opens the registry directly for read-only maintenance views.
func (c *commandContext) withRegistry(fn func(*registry.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := registry.Open(cfg)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered objects in registration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(store *registry.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if records == nil {
						records = []*registry.Record{}
					}
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No registered objects")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.FormatInt(rec.Seq, 10),
						rec.ID,
						rec.Label,
						rec.Fingerprint.String(),
						rec.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "ID", "Label", "Fingerprint", "Registered"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	var byFingerprint bool
	cmd := &cobra.Command{
		Use:   "show <id|fingerprint>",
		Short: "Show one registered object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(store *registry.Store) error {
				var rec *registry.Record
				if byFingerprint {
					fp, err := phash.Parse(args[0])
					if err != nil {
						return services.Wrap(services.ErrValidation, "records", "show", "parse fingerprint", err)
					}
					if rec, err = store.FindByFingerprint(cmd.Context(), fp); err != nil {
						return err
					}
				} else {
					var err error
					if rec, err = store.Get(cmd.Context(), args[0]); err != nil {
						return err
					}
				}
				if rec == nil {
					return services.Wrap(services.ErrNotFound, "records", "show", fmt.Sprintf("record %q", args[0]), nil)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", rec.ID)
				fmt.Fprintf(out, "Sequence:    %d\n", rec.Seq)
				if rec.Label != "" {
					fmt.Fprintf(out, "Label:       %s\n", rec.Label)
				}
				fmt.Fprintf(out, "Fingerprint: %s (%s)\n", rec.Fingerprint, rec.Fingerprint.Kind)
				fmt.Fprintf(out, "Generator:   %s\n", rec.GeneratorVersion)
				fmt.Fprintf(out, "Registered:  %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Signatures:  color=%s edge=%s\n", yesNo(rec.Aux.HasColor()), yesNo(rec.Aux.HasEdge()))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&byFingerprint, "fingerprint", false, "Look the record up by fingerprint instead of id")
	return cmd
}

func newRecordsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a registered object",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(true, func(svc *identity.Service) error {
				err := svc.Remove(cmd.Context(), args[0])
				if errors.Is(err, services.ErrNotFound) {
					return fmt.Errorf("no record with id %q: %w", args[0], err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}
