package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/registry/internal/domain"
	"github.com/roach88/registry/internal/schema"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Issuer          string
	ReferenceNumber string
	Subject         string
	Recipient       string
	Offices         []string
	EntryDate       string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <category>",
		Short: "Register a piece of correspondence",
		Long: `Register a piece of correspondence and allocate its numbers.

The category is <common|confidential|signals>_<incoming|outgoing>. Incoming
registrations need at least one --office; outgoing registrations need a
--recipient and also receive a draft number. The entry date defaults to today.

Examples:
  registry create common_incoming --issuer "Ministry of Finance" \
    --reference F-100 --subject "Budget circular" --office OFF-1 --office OFF-2
  registry create signals_outgoing --issuer "Signals Desk" --reference S-1 \
    --subject "Frequency plan" --recipient "Fleet Command" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Issuer, "issuer", "", "issuing authority")
	cmd.Flags().StringVar(&opts.ReferenceNumber, "reference", "", "issuer's reference number")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "recipient (outgoing categories)")
	cmd.Flags().StringSliceVar(&opts.Offices, "office", nil, "office code, repeatable (incoming categories)")
	cmd.Flags().StringVar(&opts.EntryDate, "entry-date", "", "entry date YYYY-MM-DD (default today)")

	return cmd
}

// payload builds the JSON create body the HTTP API would receive, so the
// CLI goes through the same schema check.
func (o *CreateOptions) payload(cmd *cobra.Command) ([]byte, error) {
	body := map[string]any{
		"issuer":          o.Issuer,
		"referenceNumber": o.ReferenceNumber,
		"subject":         o.Subject,
	}
	if cmd.Flags().Changed("recipient") {
		body["recipient"] = o.Recipient
	}
	if len(o.Offices) > 0 {
		body["offices"] = o.Offices
	}
	if o.EntryDate != "" {
		body["entryDate"] = o.EntryDate
	}
	return json.Marshal(body)
}

func runCreate(opts *CreateOptions, category string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	validator, err := schema.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load payload schema", err)
	}
	if err := validator.ValidateCategory(category); err != nil {
		return f.Fail("create", err)
	}
	data, err := opts.payload(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode payload", err)
	}
	in, err := validator.ValidatePayload(data)
	if err != nil {
		return f.Fail("create", err)
	}

	a, err := openApp(opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	reg, err := a.svc.CreateRegistration(a.ctx(cmd), category, in)
	if err != nil {
		return f.Fail("create", err)
	}

	return f.Success(reg, func(w io.Writer) { writeRegistration(w, reg) })
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a registration",
		Long: `Mark a registration as deleted. Its numbers are never reused and it stays
in the store, hidden from listings, until its month is archived.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			id, err := parseID(args[0])
			if err != nil {
				return f.Fail("delete", err)
			}

			a, err := openApp(rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.DeleteRegistration(a.ctx(cmd), id); err != nil {
				return f.Fail("delete", err)
			}
			return f.Success(map[string]any{"id": id, "deleted": true}, func(w io.Writer) {
				fmt.Fprintf(w, "Registration %d deleted\n", id)
			})
		},
	}
}

// ShowResult is the show command payload: a registration and its audit trail.
type ShowResult struct {
	Registration domain.Registration `json:"registration"`
	Audit        []domain.AuditEvent `json:"audit"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show a registration and its audit trail",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			id, err := parseID(args[0])
			if err != nil {
				return f.Fail("show", err)
			}

			a, err := openApp(rootOpts, cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := a.ctx(cmd)
			reg, err := a.svc.GetRegistration(ctx, id)
			if err != nil {
				return f.Fail("show", err)
			}
			events, err := a.svc.AuditTrail(ctx, id)
			if err != nil {
				return f.Fail("show", err)
			}

			result := ShowResult{Registration: reg, Audit: events}
			return f.Success(result, func(w io.Writer) {
				writeRegistration(w, reg)
				fmt.Fprintln(w)
				writeAuditTrail(w, events)
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Month    string
	Category string
	Page     int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active registrations of a month",
		Long: `List the active registrations whose entry date falls in a month, ordered by
id, 100 per page. Deleted and archived registrations are not listed.

Examples:
  registry list --month 2025-09
  registry list --month 2025-09 --category common_outgoing --page 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Month, "month", "", "month YYYY-MM (default current month)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "restrict to one category")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "1-based page number")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	a, err := openApp(opts.RootOptions, cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	month := opts.Month
	if month == "" {
		month = domain.CurrentMonth(domain.SystemClock{}.Now())
	}

	page, err := a.svc.ListRegistrations(a.ctx(cmd), month, opts.Category, opts.Page)
	if err != nil {
		return f.Fail("list", err)
	}

	return f.Success(page, func(w io.Writer) {
		writeRegistrations(w, page.Items)
		pages := (page.Total + int64(page.PageSize) - 1) / int64(page.PageSize)
		fmt.Fprintf(w, "\n%s: page %d of %d, %d registration(s)\n", month, page.Page, max(pages, 1), page.Total)
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, domain.NewValidationError("id", fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}
