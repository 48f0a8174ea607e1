package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/registry/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeRegistration(w io.Writer, reg domain.Registration) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%d\n", reg.ID)
	fmt.Fprintf(tw, "Category:\t%s\n", reg.Category)
	fmt.Fprintf(tw, "Protocol number:\t%d\n", reg.ProtocolNumber)
	if reg.DraftNumber != nil {
		fmt.Fprintf(tw, "Draft number:\t%d\n", *reg.DraftNumber)
	}
	fmt.Fprintf(tw, "Entry date:\t%s\n", reg.EntryDate)
	fmt.Fprintf(tw, "Issuer:\t%s\n", reg.Issuer)
	fmt.Fprintf(tw, "Reference:\t%s\n", reg.ReferenceNumber)
	fmt.Fprintf(tw, "Subject:\t%s\n", reg.Subject)
	if reg.Recipient != "" {
		fmt.Fprintf(tw, "Recipient:\t%s\n", reg.Recipient)
	}
	if len(reg.Offices) > 0 {
		fmt.Fprintf(tw, "Offices:\t%s\n", strings.Join(reg.Offices, ", "))
	}
	fmt.Fprintf(tw, "Created:\t%s\n", reg.CreatedAt.Format(time.RFC3339))
	if reg.DeletedFlag && reg.DeletedAt != nil {
		fmt.Fprintf(tw, "Deleted:\t%s\n", reg.DeletedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func writeRegistrations(w io.Writer, regs []domain.Registration) {
	if len(regs) == 0 {
		fmt.Fprintln(w, "No registrations.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCATEGORY\tPROTOCOL\tDRAFT\tDATE\tISSUER\tSUBJECT")
	for _, reg := range regs {
		draft := "-"
		if reg.DraftNumber != nil {
			draft = fmt.Sprint(*reg.DraftNumber)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			reg.ID, reg.Category, reg.ProtocolNumber, draft, reg.EntryDate, reg.Issuer, reg.Subject)
	}
	tw.Flush()
}

func writeAuditTrail(w io.Writer, events []domain.AuditEvent) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ACTION\tTIMESTAMP\tUSER")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Action, e.Timestamp.Format(time.RFC3339), e.Username)
	}
	tw.Flush()
}

func writeBatches(w io.Writer, batches []domain.ArchiveBatch) {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No archive batches.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "MONTH\tMOVED\tCREATED\tRUN")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", b.Month, b.ItemsMoved, b.CreatedAt.Format(time.RFC3339), b.RunID)
	}
	tw.Flush()
}

func writeSequences(w io.Writer, counters []domain.SequenceCounter) {
	if len(counters) == 0 {
		fmt.Fprintln(w, "No numbers allocated yet.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "KIND\tCATEGORY\tYEAR\tNEXT")
	for _, c := range counters {
		year := "-"
		if c.Year != 0 {
			year = fmt.Sprint(c.Year)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", c.Kind, c.Category, year, c.NextValue)
	}
	tw.Flush()
}
