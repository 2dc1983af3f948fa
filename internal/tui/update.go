package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kfget/kfget/internal/batch"
	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// Update handles messages and updates the model.
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case events.ItemQueuedMsg:
		m.addItem(msg.RequestID, msg.URL)
		cmds = append(cmds, listenForActivity(m.eventCh))

	case events.ItemStartedMsg:
		it := m.item(msg.RequestID)
		if it == nil {
			it = m.addItem(msg.RequestID, msg.URL)
		}
		it.ContentID = msg.ContentID
		it.SubIndex = msg.SubIndex
		it.StartTime = time.Now()
		cmds = append(cmds, listenForActivity(m.eventCh))

	case events.ItemSkippedMsg:
		it := m.addItem(msg.RequestID, msg.URL)
		it.skipped = true
		it.done = true
		cmds = append(cmds, listenForActivity(m.eventCh))

	case events.ProgressMsg:
		if it := m.item(msg.RequestID); it != nil && !it.done {
			it.Phase = msg.Phase
			it.Elapsed = time.Since(it.StartTime)
			if msg.Total > 0 {
				it.Completed = msg.Completed
				it.Total = msg.Total
				cmds = append(cmds, it.progress.SetPercent(float64(msg.Completed)/float64(msg.Total)))
			}
			if msg.Phase == types.PhaseDone && msg.Message != "" {
				it.OutputPath = msg.Message
			}
		}
		cmds = append(cmds, listenForActivity(m.eventCh))

	case events.ItemCompleteMsg:
		if it := m.item(msg.RequestID); it != nil {
			it.done = true
			it.Phase = types.PhaseDone
			it.OutputPath = msg.OutputPath
			it.Bytes = msg.Bytes
			it.Elapsed = msg.Elapsed
			cmds = append(cmds, it.progress.SetPercent(1.0))
		}
		cmds = append(cmds, listenForActivity(m.eventCh))

	case events.ItemErrorMsg:
		if it := m.item(msg.RequestID); it != nil {
			it.done = true
			it.Phase = types.PhaseFailed
			it.err = msg.Err
		}
		cmds = append(cmds, listenForActivity(m.eventCh))

	case events.BatchDoneMsg:
		m.batchDone = true
		m.batchElapsed = msg.Elapsed
		cmds = append(cmds, listenForActivity(m.eventCh))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case DashboardState:
			switch msg.String() {
			case "q", "ctrl+c":
				m.service.Cancel()
				m.cancel()
				m.releaseSub()
				return m, tea.Quit

			case "x":
				// Cancel the selected in-flight item only.
				if m.cursor < len(m.items) {
					it := m.items[m.cursor]
					if !it.done {
						if err := m.service.CancelItem(it.RequestID); err != nil {
							utils.Debug("TUI: cancel item %s: %v", it.RequestID, err)
						}
					}
				}

			case "X":
				m.service.Cancel()

			case "g":
				if m.service.State() == batch.Idle {
					m.state = InputState
					m.urlInput.SetValue("")
					m.urlInput.Focus()
				}
				return m, nil

			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
					if m.cursor < m.scroll {
						m.scroll = m.cursor
					}
				}

			case "down", "j":
				if m.cursor < len(m.items)-1 {
					m.cursor++
					if m.cursor >= m.scroll+MaxVisibleItems {
						m.scroll = m.cursor - MaxVisibleItems + 1
					}
				}
			}

		case InputState:
			switch msg.String() {
			case "esc":
				m.state = DashboardState
				return m, nil

			case "enter":
				raw := strings.TrimSpace(m.urlInput.Value())
				if raw == "" {
					return m, nil
				}
				urls := splitURLs(raw)
				m.state = DashboardState
				m.batchDone = false
				if err := m.service.Start(m.ctx, urls, m.destDir); err != nil {
					utils.Debug("TUI: start batch: %v", err)
				}
				return m, nil
			}

			var cmd tea.Cmd
			m.urlInput, cmd = m.urlInput.Update(msg)
			return m, cmd
		}
	}

	for i := range m.items {
		newModel, cmd := m.items[i].progress.Update(msg)
		if p, ok := newModel.(progress.Model); ok {
			m.items[i].progress = p
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// splitURLs accepts whitespace or comma separated URL lists.
func splitURLs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	urls := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			urls = append(urls, f)
		}
	}
	return urls
}
