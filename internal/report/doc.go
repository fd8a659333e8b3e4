// Package report renders findings pages for output.
//
// Three writers share the Writer interface:
//   - SimpleWriter: human-readable text for the terminal
//   - MarkdownWriter: GitHub Flavored Markdown with a severity pie chart
//   - JSONWriter: structured JSON for tool integration
//
// Writers render exactly what the backend returned for one page. Severity
// strings are shown as sent; the model's ranking is only used for ordering
// summaries.
package report
