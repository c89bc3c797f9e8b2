package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/site-invoices/internal/domain/entity"
)

const dateLayout = "2006-01-02"

func newListCmd(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries, newest first",
		Example: `  ledgerctl list
  ledgerctl list --status unpaid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !entity.Status(status).IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVENDOR\tNUMBER\tISSUED\tTOTAL\tSTATUS\tPROJECT")
			for _, inv := range a.container.Services().Ledger.List(cmd.Context()) {
				if status != "" && string(inv.Status) != status {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
					inv.ID.Value(),
					inv.VendorName,
					inv.InvoiceNumber,
					inv.IssueDate.Format(dateLayout),
					inv.EffectiveTotal().StringFixed(2),
					inv.Currency,
					inv.Status,
					inv.ProjectName,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show entries with this status")
	return cmd
}

func newTotalsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Print outstanding and paid totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			totals := a.container.Services().Ledger.Totals(cmd.Context())
			fmt.Fprintf(a.out, "Outstanding: %s %s\n", totals.Outstanding.StringFixed(2), totals.Currency)
			fmt.Fprintf(a.out, "Paid:        %s %s\n", totals.Paid.StringFixed(2), totals.Currency)
			fmt.Fprintf(a.out, "Entries:     %d\n", totals.Count)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Export the ledger to an xlsx workbook",
		Example: `  ledgerctl export --out invoices.xlsx`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}

			if err := a.container.Services().Ledger.Export(cmd.Context(), f); err != nil {
				f.Close()
				os.Remove(out)
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}

			fmt.Fprintf(a.out, "Exported %d entries to %s\n", a.container.Ledger().Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newSetStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change an invoice's payment status",
		Long: fmt.Sprintf("Change an invoice's status and persist it to the store of record.\nValid statuses: %s",
			strings.Join(statusNames(), ", ")),
		Example: `  ledgerctl set-status 0192f0c4-7b1e-7d2a-9c3e-1f2a3b4c5d6e paid`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := entity.ConfirmedID(strings.TrimSpace(args[0]))
			inv, err := a.container.Services().Ledger.SetStatus(cmd.Context(), id, entity.Status(args[1]))
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "%s %s -> %s\n", inv.ID.Value(), inv.VendorName, inv.Status)
			return nil
		},
	}
}

func statusNames() []string {
	return []string{
		string(entity.StatusUnassigned),
		string(entity.StatusAttachedToProject),
		string(entity.StatusUnpaid),
		string(entity.StatusPaid),
	}
}
