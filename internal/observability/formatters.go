// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/applyflow/internal/db"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// deref returns the string behind an optional field, or "" when unset.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PrintJobPosting outputs a human-readable summary of an ingested posting.
func (p *Printer) PrintJobPosting(posting *db.JobPosting) {
	if posting == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Status:   %s\n", posting.Status))
	if posting.Platform != "" {
		sb.WriteString(fmt.Sprintf("Platform: %s\n", posting.Platform))
	}
	if company := deref(posting.Company); company != "" {
		sb.WriteString(fmt.Sprintf("Company:  %s\n", company))
	}
	if role := deref(posting.RoleTitle); role != "" {
		sb.WriteString(fmt.Sprintf("Role:     %s\n", role))
	}
	if location := deref(posting.Location); location != "" {
		sb.WriteString(fmt.Sprintf("Location: %s\n", location))
	}
	if salary := deref(posting.Salary); salary != "" {
		sb.WriteString(fmt.Sprintf("Salary:   %s\n", salary))
	}

	if !posting.Requirements.IsEmpty() {
		sb.WriteString("\nRequirements:\n")
		sb.WriteString(formatList(posting.Requirements))
	}
	if !posting.Benefits.IsEmpty() {
		sb.WriteString("\nBenefits:\n")
		sb.WriteString(formatList(posting.Benefits))
	}

	if errMsg := deref(posting.ErrorMessage); errMsg != "" {
		sb.WriteString(fmt.Sprintf("\nError: %s\n", errMsg))
	}

	p.printBox("Job Posting", strings.TrimRight(sb.String(), "\n"))
}

// formatList renders a structured list, falling back to its raw form.
func formatList(list db.StructuredList) string {
	var sb strings.Builder

	if len(list.Items) > 0 {
		count := min(len(list.Items), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", list.Items[i]))
		}
		if len(list.Items) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(list.Items)-maxItemsToShow))
		}
		return sb.String()
	}

	if list.Raw != "" {
		sb.WriteString(fmt.Sprintf("  %s\n", list.Raw))
	}
	return sb.String()
}

// PrintIngestSummary outputs a one-line outcome for an ingestion run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintIngestSummary(posting *db.JobPosting) {
	if posting == nil {
		return
	}
	if posting.Usable() {
		fmt.Fprintf(p.out, "Ingested %s (%s)\n", posting.ID, posting.Status)
		return
	}
	fmt.Fprintf(p.out, "Ingestion recorded failure for %s (%s)\n", posting.ID, posting.Status)
}
