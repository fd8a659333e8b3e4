package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/scanwatch/internal/model"
)

// Column widths of the text findings table.
const (
	colSeverity    = 16
	colType        = 24
	colFile        = 36
	colLine        = 6
	maxDescription = 72
)

// SimpleWriter outputs human-readable text.
// It uses plain ASCII rules rather than ANSI colors so output can be piped
// to files or other tools unchanged.
type SimpleWriter struct {
	baseWriter

	// verbose adds confidence and the finding ID under each row.
	verbose bool

	// summary adds the per-severity tally after the table.
	summary bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithSummary toggles the severity tally below the table.
func WithSummary(summary bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.summary = summary
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		summary:    true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WritePage renders one page as a text table.
func (w *SimpleWriter) WritePage(page model.Page) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, page.JobID)
	sb.WriteString(pageLabel(page))
	sb.WriteString(fmt.Sprintf(" (%d findings total)\n\n", page.TotalEntries))

	if page.IsEmpty() {
		sb.WriteString(msgNoFindings)
		sb.WriteString("\n")
		return io.WriteString(w.output, sb.String())
	}

	w.writeTable(&sb, page.Items)

	if w.summary {
		sb.WriteString("\nOn this page: ")
		parts := make([]string, 0)
		for _, c := range severityDistribution(page.Items) {
			parts = append(parts, fmt.Sprintf("%s %d", c.Label, c.Count))
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("\n")
	}

	w.writeNavigation(&sb, page)

	return io.WriteString(w.output, sb.String())
}

// WriteFailure renders a failed scan. The client never retries.
func (w *SimpleWriter) WriteFailure(id model.ID, cause error) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, id)
	sb.WriteString(msgScanFailed)
	sb.WriteString("\n")
	if cause != nil {
		sb.WriteString(fmt.Sprintf("  Reason: %v\n", cause))
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, id model.ID) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Scan %s\n", id))
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeTable(sb *strings.Builder, items []model.Finding) {
	row := fmt.Sprintf("%%-%ds %%-%ds %%-%ds %%%ds  %%s\n", colSeverity, colType, colFile, colLine)

	sb.WriteString(fmt.Sprintf(row, "Severity", "Type", "File", "Line", "Description"))
	sb.WriteString(strings.Repeat("-", colSeverity+colType+colFile+colLine+maxDescription/2))
	sb.WriteString("\n")

	for _, f := range items {
		sb.WriteString(fmt.Sprintf(row,
			truncateString(severityLabel(f), colSeverity),
			truncateString(orDash(f.VulnerabilityType), colType),
			truncateString(orDash(f.File), colFile),
			lineLabel(f.Line),
			truncateString(orDash(f.Description), maxDescription),
		))
		if w.verbose {
			sb.WriteString(fmt.Sprintf("    id=%s confidence=%s\n", orDash(f.ID.String()), orDash(f.Confidence)))
		}
	}
}

func (w *SimpleWriter) writeNavigation(sb *strings.Builder, page model.Page) {
	var hints []string
	if page.HasPrevious() {
		hints = append(hints, fmt.Sprintf("previous: --page %d", page.PageNumber-1))
	}
	if page.HasNext() {
		hints = append(hints, fmt.Sprintf("next: --page %d", page.PageNumber+1))
	}
	if len(hints) == 0 {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Join(hints, " | "))
	sb.WriteString("\n")
}
