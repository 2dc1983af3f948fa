package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kfget/kfget/internal/batch"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// View renders the dashboard or the URL input form.
func (m RootModel) View() string {
	if m.state == InputState {
		return m.inputView()
	}
	return m.dashboardView()
}

func (m RootModel) inputView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("kfget"))
	b.WriteString("\n\n")
	b.WriteString("Player URLs (space or comma separated):\n")
	b.WriteString(m.urlInput.View())
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("enter: start batch • esc: back"))
	return AppStyle.Render(b.String())
}

func (m RootModel) dashboardView() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("kfget"))
	b.WriteString("  ")
	b.WriteString(StatusBarStyle.Render(m.statusLine()))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("No downloads yet. Press g to queue a batch."))
		b.WriteString("\n")
	}

	end := m.scroll + MaxVisibleItems
	if end > len(m.items) {
		end = len(m.items)
	}
	for i := m.scroll; i < end; i++ {
		b.WriteString(m.renderItem(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("g: new batch • x: cancel item • X: cancel batch • j/k: move • q: quit"))
	return AppStyle.Render(b.String())
}

func (m RootModel) statusLine() string {
	state := m.service.State()
	if m.batchDone && state == batch.Idle {
		ok, failed, skipped := m.tally()
		return fmt.Sprintf("batch finished in %s: %d ok, %d failed, %d skipped",
			m.batchElapsed.Round(timeRound), ok, failed, skipped)
	}
	return fmt.Sprintf("%s • %d item(s)", state, len(m.items))
}

func (m RootModel) tally() (ok, failed, skipped int) {
	for _, it := range m.items {
		switch {
		case it.skipped:
			skipped++
		case it.err != nil:
			failed++
		case it.done:
			ok++
		}
	}
	return
}

func (m RootModel) renderItem(i int) string {
	it := m.items[i]

	style := CardStyle
	if i == m.cursor {
		style = SelectedCardStyle
	}

	name := it.URL
	if it.ContentID != 0 {
		name = fmt.Sprintf("v%d-sub-%d", it.ContentID, it.SubIndex)
	}

	var status string
	switch {
	case it.skipped:
		status = SkippedStyle.Render("skipped (duplicate)")
	case it.err != nil:
		status = ErrorStyle.Render(fmt.Sprintf("failed: %s", types.KindOf(it.err).OperatorMessage()))
	case it.done:
		status = DoneStyle.Render(fmt.Sprintf("done → %s (%s, %s)",
			it.OutputPath, utils.FormatBytes(it.Bytes), it.Elapsed.Round(timeRound)))
	default:
		status = PhaseStyle.Render(string(it.Phase))
		if it.Total > 0 {
			status += CardStatsStyle.Render(fmt.Sprintf("  %d/%d", it.Completed, it.Total))
		}
	}

	lines := []string{
		CardTitleStyle.Render(name),
		status,
	}
	if !it.done && it.Total > 0 {
		lines = append(lines, it.progress.View())
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
