package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/watch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Bold(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("7"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	emptyTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	sevCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	sevHighStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sevMedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sevLowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// StatusMsg carries a status published by the tracker.
type StatusMsg model.Status

// PageMsg carries a page delivered by the pager.
type PageMsg model.Page

// PageErrorMsg carries a failed page request.
type PageErrorMsg watch.PageError

// Pager is the navigation surface the browser drives.
type Pager interface {
	NextPage() error
	PreviousPage() error
	RequestPage(n int) error
	Cursor() int
}

// Model is the bubbletea model of the findings browser.
type Model struct {
	jobID   model.ID
	pager   Pager
	cancel  func()
	table   table.Model
	spinner spinner.Model

	status   model.Status
	page     model.Page
	hasPage  bool
	loading  bool
	notice   string
	quitting bool
	width    int
	height   int
}

// NewModel creates a browser for jobID. cancel is invoked when the user asks
// to cancel the scan; it may be nil.
func NewModel(jobID model.ID, pager Pager, cancel func()) Model {
	t := table.New(
		table.WithColumns(columnsFor(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("15")).
		Bold(true).
		Padding(0, 1)
	s.Selected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("232")).
		Background(lipgloss.Color("208")).
		Bold(true)
	s.Cell = lipgloss.NewStyle().Padding(0, 1)
	t.SetStyles(s)

	// Line spinner avoids Braille characters that render poorly on some terminals
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	return Model{
		jobID:   jobID,
		pager:   pager,
		cancel:  cancel,
		table:   t,
		spinner: sp,
		status:  model.StatusPending,
	}
}

// columnsFor sizes the findings columns to the terminal width.
func columnsFor(width int) []table.Column {
	desc := width - 16 - 22 - 30 - 6 - 12
	if desc < 20 {
		desc = 20
	}
	return []table.Column{
		{Title: "Severity", Width: 16},
		{Title: "Type", Width: 22},
		{Title: "File", Width: 30},
		{Title: "Line", Width: 6},
		{Title: "Description", Width: desc},
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses and component messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columnsFor(msg.Width))
		m.table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case StatusMsg:
		m.status = model.Status(msg)
		switch m.status {
		case model.StatusComplete:
			m.loading = true
			m.notice = ""
		case model.StatusFailed:
			m.loading = false
		}
		return m, nil

	case PageMsg:
		m.page = model.Page(msg)
		m.hasPage = true
		m.loading = false
		m.notice = ""
		m.table.SetRows(rowsFor(m.page.Items))
		m.table.GotoTop()
		return m, nil

	case PageErrorMsg:
		m.loading = false
		m.notice = fmt.Sprintf("Could not load page %d: %v", msg.Page, msg.Err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "c":
		if m.status.IsActive() && m.cancel != nil {
			m.cancel()
			m.notice = "Cancel requested"
		}
		return m, nil

	case "n", "right", "l":
		return m.navigate(m.pager.NextPage, "Already on the last page")

	case "p", "left", "h":
		return m.navigate(m.pager.PreviousPage, "Already on the first page")

	case "r":
		if m.status != model.StatusComplete {
			return m, nil
		}
		return m.navigate(func() error { return m.pager.RequestPage(m.pager.Cursor()) }, "")
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// navigate runs a pager call. Disabled directions are reported in the footer
// rather than as errors.
func (m Model) navigate(call func() error, edge string) (tea.Model, tea.Cmd) {
	if m.status != model.StatusComplete || m.pager == nil {
		return m, nil
	}
	if err := call(); err != nil {
		if errors.Is(err, watch.ErrNoPage) {
			m.notice = edge
		} else {
			m.notice = err.Error()
		}
		return m, nil
	}
	m.loading = true
	m.notice = ""
	return m, nil
}

func rowsFor(items []model.Finding) []table.Row {
	rows := make([]table.Row, len(items))
	for i, f := range items {
		line := "-"
		if f.Line > 0 {
			line = fmt.Sprintf("%d", f.Line)
		}
		rows[i] = table.Row{
			severityText(f),
			f.VulnerabilityType,
			f.File,
			line,
			strings.ReplaceAll(f.Description, "\n", " "),
		}
	}
	return rows
}

// severityText returns plain text for severity (ANSI codes break table truncation).
func severityText(f model.Finding) string {
	if f.Severity != "" {
		return f.Severity
	}
	if f.Confidence != "" {
		return f.Confidence
	}
	return "-"
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("scanwatch  scan %s", m.jobID)))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	switch {
	case m.status == model.StatusFailed:
		b.WriteString(failedStyle.Render("Scan failed"))
		b.WriteString("\n")
	case !m.hasPage:
		b.WriteString(emptyTextStyle.Render("Waiting for findings..."))
		b.WriteString("\n")
	case m.page.IsEmpty():
		b.WriteString(emptyTextStyle.Render("No findings reported for this scan."))
		b.WriteString("\n")
	default:
		b.WriteString(m.table.View())
		b.WriteString("\n")
		b.WriteString(m.summaryLine())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) statusLine() string {
	label := string(m.status)
	if m.status.IsActive() || m.loading {
		label = m.spinner.View() + " " + label
	}
	if m.loading && m.status == model.StatusComplete {
		label += " (loading page)"
	}
	return statusStyle.Render(" Status: " + label + " ")
}

func (m Model) summaryLine() string {
	total := max(m.page.TotalPages, 1)
	counts := model.CountBySeverity(m.page.Items)
	return fmt.Sprintf("Page %d of %d  |  %d findings  |  %s %d  %s %d  %s %d  %s %d",
		m.page.PageNumber, total, m.page.TotalEntries,
		sevCriticalStyle.Render("Critical:"), counts[model.SeverityCritical],
		sevHighStyle.Render("High:"), counts[model.SeverityHigh],
		sevMedStyle.Render("Medium:"), counts[model.SeverityMedium],
		sevLowStyle.Render("Low:"), counts[model.SeverityLow],
	)
}

func (m Model) footer() string {
	keys := []string{keyStyle.Render("q") + " quit"}
	if m.status.IsActive() {
		keys = append(keys, keyStyle.Render("c")+" cancel scan")
	}
	if m.hasPage {
		keys = append(keys, control("p", "previous", m.page.HasPrevious()))
		keys = append(keys, control("n", "next", m.page.HasNext()))
		keys = append(keys, keyStyle.Render("r")+" reload")
	}

	line := strings.Join(keys, "  ")
	if m.notice != "" {
		line += "  |  " + m.notice
	}
	return line
}

// control renders a navigation key, dimmed when the direction is disabled.
func control(key, label string, enabled bool) string {
	if !enabled {
		return disabledStyle.Render(key + " " + label)
	}
	return keyStyle.Render(key) + " " + label
}
