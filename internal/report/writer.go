package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/scanwatch/internal/model"
)

// Messages shared by every human-readable writer.
const (
	msgScanFailed = "Scan failed"
	msgNoFindings = "No findings reported for this scan."
)

// Writer renders findings pages and failed scans.
type Writer interface {
	// WritePage renders one findings page.
	WritePage(page model.Page) (int, error)

	// WriteFailure renders a scan that ended in failed. cause may be nil when
	// the backend itself reported the failure.
	WriteFailure(id model.ID, cause error) (int, error)
}

// Format selects a Writer implementation.
type Format int

const (
	// FormatText is the default terminal output.
	FormatText Format = iota
	// FormatMarkdown is GitHub Flavored Markdown.
	FormatMarkdown
	// FormatJSON is indented JSON.
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// NewWriter returns the writer for format. version is stamped into JSON
// documents.
func NewWriter(format Format, output io.Writer, version string) Writer {
	switch format {
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version))
	default:
		return NewSimpleWriter(output)
	}
}

// MultiWriter writes to multiple Writers in order and stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WritePage renders page with every writer.
func (m *MultiWriter) WritePage(page model.Page) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WritePage(page)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteFailure renders the failure with every writer.
func (m *MultiWriter) WriteFailure(id model.ID, cause error) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteFailure(id, cause)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// pageLabel renders "Page X of Y". An empty result set reports one page.
func pageLabel(page model.Page) string {
	total := page.TotalPages
	if total < 1 {
		total = 1
	}
	return fmt.Sprintf("Page %d of %d", page.PageNumber, total)
}

// severityLabel normalises the free-form severity string for display,
// e.g. "HIGH CONFIDENCE" and "high confidence" both become "High Confidence".
// A Caser is stateful, so a new one is created per call.
func severityLabel(f model.Finding) string {
	raw := strings.TrimSpace(f.Severity)
	if raw == "" {
		raw = strings.TrimSpace(f.Confidence)
	}
	if raw == "" {
		return "-"
	}
	return cases.Title(language.English).String(strings.ToLower(raw))
}

// severityCount is one bucket of a page's severity distribution.
type severityCount struct {
	Label string
	Count int
}

// severityDistribution groups the page's findings by normalised label,
// highest ranked first and then by label.
func severityDistribution(findings []model.Finding) []severityCount {
	counts := make(map[string]int)
	ranks := make(map[string]model.Severity)
	for _, f := range findings {
		label := severityLabel(f)
		counts[label]++
		ranks[label] = max(ranks[label], f.Rank())
	}

	out := make([]severityCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, severityCount{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b severityCount) int {
		if c := cmp.Compare(ranks[b.Label], ranks[a.Label]); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// lineLabel renders a line number, "-" when the backend sent none.
func lineLabel(line int) string {
	if line <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", line)
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
