package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/registry/internal/domain"
)

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		month  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move a completed month to its archive store",
		Long: `Move every registration of a completed month, with its audit events, from
the primary store to archive/<YYYY-MM>.db next to it, and record an archive
batch. Without --month the previous calendar month is archived.

Reruns are safe: a month with nothing left to move records a batch with zero
items.

Examples:
  registry archive
  registry archive --month 2025-08
  registry archive --month 2025-08 --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if dryRun {
				result, err := a.svc.PendingArchive(a.ctx(cmd), month)
				if err != nil {
					return f.Fail("archive", err)
				}
				return f.Success(result, func(w io.Writer) {
					fmt.Fprintf(w, "Would archive %d registration(s) for %s\n", result.ItemsMoved, result.Month)
				})
			}

			var result domain.ArchiveResult
			if month == "" {
				result, err = a.svc.RunMonthlyArchive(a.ctx(cmd))
			} else {
				result, err = a.svc.ArchiveMonth(a.ctx(cmd), month)
			}
			if err != nil {
				return f.Fail("archive", err)
			}

			return f.Success(result, func(w io.Writer) {
				fmt.Fprintf(w, "Archived %d registration(s) for %s (run %s)\n", result.ItemsMoved, result.Month, result.RunID)
			})
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "completed month YYYY-MM (default previous month)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count the registrations to move without moving them")

	return cmd
}

// NewBatchesCommand creates the batches command.
func NewBatchesCommand(rootOpts *RootOptions) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:           "batches",
		Short:         "List archive batch receipts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			batches, err := a.svc.ArchiveBatches(a.ctx(cmd), month)
			if err != nil {
				return f.Fail("batches", err)
			}
			return f.Success(batches, func(w io.Writer) { writeBatches(w, batches) })
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "only batches for month YYYY-MM")

	return cmd
}

// NewArchivedCommand creates the archived command.
func NewArchivedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "archived <month>",
		Short:         "Show the registrations held in a month's archive store",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			contents, err := a.svc.ReadArchive(a.ctx(cmd), args[0])
			if err != nil {
				return f.Fail("archived", err)
			}
			return f.Success(contents, func(w io.Writer) {
				writeRegistrations(w, contents.Registrations)
				fmt.Fprintf(w, "\n%s: %d registration(s), %d audit event(s) archived\n",
					contents.Month, len(contents.Registrations), contents.AuditEvents)
			})
		},
	}
}

// NewSequencesCommand creates the sequences command.
func NewSequencesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sequences",
		Short: "Show the numbering counters",
		Long: `Show every protocol and draft counter with the value it will hand out next.
Counters are never rewound, so archived or deleted registrations never free a
number.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			counters, err := a.svc.Sequences(a.ctx(cmd))
			if err != nil {
				return f.Fail("sequences", err)
			}
			return f.Success(counters, func(w io.Writer) { writeSequences(w, counters) })
		},
	}
}
