package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nao1215/scanwatch/internal/model"
	"github.com/nao1215/scanwatch/internal/watch"
)

// Run starts tracking jobID with session and shows the browser until the user
// quits or ctx is cancelled. The session is disposed on return.
func Run(ctx context.Context, session *watch.Session, jobID model.ID, opts ...tea.ProgramOption) error {
	m := NewModel(jobID, session.Pager(), session.Cancel)

	programOpts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, programOpts...)

	session.Tracker().OnStatusChange(func(s model.Status) { p.Send(StatusMsg(s)) })
	session.Pager().OnPage(func(page model.Page) { p.Send(PageMsg(page)) })
	session.Pager().OnPageError(func(e watch.PageError) { p.Send(PageErrorMsg(e)) })

	if err := session.Start(ctx, jobID); err != nil {
		return fmt.Errorf("failed to track scan %s: %w", jobID, err)
	}
	defer session.Dispose()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrInterrupted) || (errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
			return nil
		}
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
