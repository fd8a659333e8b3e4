package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/scanwatch/internal/model"
)

// MarkdownWriter outputs findings as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WritePage renders one page with a summary table, a severity pie chart and
// the findings table.
func (w *MarkdownWriter) WritePage(page model.Page) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, page.JobID, "complete")
	md.PlainText(pageLabel(page))
	md.PlainText("")

	if page.IsEmpty() {
		md.Note(msgNoFindings)
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	dist := severityDistribution(page.Items)
	w.writeSummary(md, page, dist)
	w.writeFindings(md, page.Items)
	w.writeNavigation(md, page)

	return len(md.String()), md.Build()
}

// WriteFailure renders a failed scan as a caution alert.
func (w *MarkdownWriter) WriteFailure(id model.ID, cause error) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, id, "failed")
	if cause != nil {
		md.Cautionf("%s: %v", msgScanFailed, cause)
	} else {
		md.Cautionf("%s.", msgScanFailed)
	}
	md.PlainText("")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, id model.ID, status string) {
	md.H1("Scan Findings")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scan", "`" + id.String() + "`"},
			{"Status", status},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, page model.Page, dist []severityCount) {
	md.H2("Severity Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(dist)+1)
	for _, c := range dist {
		rows = append(rows, []string{c.Label, strconv.Itoa(c.Count)})
	}
	rows = append(rows, []string{"**This page**", "**" + strconv.Itoa(len(page.Items)) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.PlainTextf("%d findings in total across %d pages.", page.TotalEntries, max(page.TotalPages, 1))
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Severity Distribution (this page)"),
		piechart.WithShowData(true),
	)
	for _, c := range dist {
		chart.LabelAndIntValue(c.Label, uint64(c.Count))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	counts := model.CountBySeverity(page.Items)
	switch {
	case counts[model.SeverityCritical] > 0:
		md.Cautionf("%d critical findings on this page.", counts[model.SeverityCritical])
	case counts[model.SeverityHigh] > 0:
		md.Warningf("%d high severity findings on this page.", counts[model.SeverityHigh])
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, items []model.Finding) {
	md.H2("Findings")
	md.PlainText("")

	rows := make([][]string, 0, len(items))
	for _, f := range items {
		rows = append(rows, []string{
			escapeCell(severityLabel(f)),
			escapeCell(orDash(f.VulnerabilityType)),
			"`" + escapeCell(orDash(f.File)) + "`",
			lineLabel(f.Line),
			escapeCell(orDash(f.Description)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Type", "File", "Line", "Description"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeNavigation(md *markdown.Markdown, page model.Page) {
	var hints []string
	if page.HasPrevious() {
		hints = append(hints, fmt.Sprintf("Previous page: `--page %d`", page.PageNumber-1))
	}
	if page.HasNext() {
		hints = append(hints, fmt.Sprintf("Next page: `--page %d`", page.PageNumber+1))
	}
	if len(hints) == 0 {
		return
	}
	md.HorizontalRule()
	md.BulletList(hints...)
	md.PlainText("")
}

// escapeCell keeps table cells on one line and escapes column separators.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
