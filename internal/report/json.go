package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/scanwatch/internal/model"
)

// JSONWriter outputs findings as JSON for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string

	// version is stamped into every document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the producing scanwatch version into each document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONPage is the document written for a findings page.
type JSONPage struct {
	// Version is the scanwatch version that produced the document.
	Version string `json:"version,omitempty"`

	JobID        model.ID        `json:"job_id"`
	Status       model.Status    `json:"status"`
	PageNumber   int             `json:"page_number"`
	TotalPages   int             `json:"total_pages"`
	TotalEntries int             `json:"total_entries"`
	Items        []model.Finding `json:"items"`

	// Severity counts this page's findings by ranked severity.
	Severity map[string]int `json:"severity"`
}

// JSONFailure is the document written for a failed scan.
type JSONFailure struct {
	Version string       `json:"version,omitempty"`
	JobID   model.ID     `json:"job_id"`
	Status  model.Status `json:"status"`
	Error   string       `json:"error,omitempty"`
}

// WritePage writes the page as a JSONPage document.
func (w *JSONWriter) WritePage(page model.Page) (int, error) {
	items := page.Items
	if items == nil {
		items = []model.Finding{}
	}

	severity := make(map[string]int)
	for level, n := range model.CountBySeverity(items) {
		severity[level.String()] = n
	}

	return w.writeJSON(JSONPage{
		Version:      w.version,
		JobID:        page.JobID,
		Status:       model.StatusComplete,
		PageNumber:   page.PageNumber,
		TotalPages:   page.TotalPages,
		TotalEntries: page.TotalEntries,
		Items:        items,
		Severity:     severity,
	})
}

// WriteFailure writes a JSONFailure document.
func (w *JSONWriter) WriteFailure(id model.ID, cause error) (int, error) {
	doc := JSONFailure{
		Version: w.version,
		JobID:   id,
		Status:  model.StatusFailed,
	}
	if cause != nil {
		doc.Error = cause.Error()
	}
	return w.writeJSON(doc)
}

// writeJSON marshals v and writes it to the output with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
