// Package tui is the interactive terminal client for the router: one
// conversation, answers rendered as markdown, scrollback in a viewport.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"food-router/internal/domain"
)

// chrome is the number of lines around the viewport: header, status, input.
const chrome = 3

// Agent is the part of the RoutingAgent the TUI drives.
type Agent interface {
	Handle(ctx context.Context, utt domain.Utterance) (domain.CompositeAnswer, error)
	History(sessionKey string) ([]domain.Turn, error)
}

// Options configures the chat model.
type Options struct {
	SessionID string
	// Style is a glamour style name; "auto" detects the terminal background.
	Style string
}

type role int

const (
	roleUser role = iota
	roleRouter
	roleError
	roleSystem
)

type entry struct {
	role     role
	text     string
	degraded bool
}

// answerMsg carries the RoutingAgent's reply back into the update loop.
type answerMsg struct {
	answer domain.CompositeAnswer
	err    error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx   context.Context
	agent Agent
	opts  Options

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries []entry
	waiting bool
	ready   bool
	width   int
}

// NewModel creates the chat model. Requests run under ctx.
func NewModel(ctx context.Context, agent Agent, opts Options) Model {
	if opts.SessionID == "" {
		opts.SessionID = "cli-default"
	}
	if opts.Style == "" {
		opts.Style = "auto"
	}

	in := textinput.New()
	in.Placeholder = "menu at Joe's Pizza and how long to deliver?"
	in.Prompt = "> "
	in.CharLimit = 500
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = routerLabel

	return Model{
		ctx:     ctx,
		agent:   agent,
		opts:    opts,
		input:   in,
		spinner: sp,
		entries: []entry{{role: roleSystem, text: "Ask about menus, prep time or delivery ETA. /history, /clear, /quit."}},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.add(entry{role: roleError, text: errorText(msg.err)})
		} else {
			m.add(entry{role: roleRouter, text: msg.answer.Text, degraded: msg.answer.FullyDegraded})
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	switch {
	case text == "":
		return m, nil
	case text == "/quit" || text == "/exit":
		return m, tea.Quit
	case text == "/clear":
		m.entries = nil
		m.refresh()
		return m, nil
	case text == "/history":
		m.add(entry{role: roleSystem, text: m.historySummary()})
		return m, nil
	case m.waiting:
		m.add(entry{role: roleSystem, text: "Still working on your last message."})
		return m, nil
	}

	m.add(entry{role: roleUser, text: text})
	m.waiting = true
	return m, tea.Batch(m.ask(text), m.spinner.Tick)
}

func (m Model) ask(text string) tea.Cmd {
	ctx, agent, session := m.ctx, m.agent, m.opts.SessionID
	return func() tea.Msg {
		ans, err := agent.Handle(ctx, domain.Utterance{SessionID: session, Text: text, ReceivedAt: time.Now()})
		return answerMsg{answer: ans, err: err}
	}
}

func (m Model) historySummary() string {
	turns, err := m.agent.History(m.opts.SessionID)
	if err != nil || len(turns) == 0 {
		return "No history yet."
	}
	degraded := 0
	for _, t := range turns {
		if t.Degraded {
			degraded++
		}
	}
	return fmt.Sprintf("%d turns in this conversation (%d degraded), started %s.",
		len(turns), degraded, turns[0].At.Format(time.Kitchen))
}

func (m *Model) resize(w, h int) {
	m.width = w
	vh := max(h-chrome, 3)
	if !m.ready {
		m.viewport = viewport.New(w, vh)
		m.viewport.MouseWheelEnabled = true
		m.viewport.KeyMap = viewport.KeyMap{
			PageDown: key.NewBinding(key.WithKeys("pgdown")),
			PageUp:   key.NewBinding(key.WithKeys("pgup")),
		}
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = vh
	}
	m.input.Width = max(w-4, 10)
	m.renderer = newRenderer(m.opts.Style, max(w-4, 20))
	m.refresh()
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	opt := glamour.WithStandardStyle(style)
	if style == "auto" {
		opt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

func (m *Model) add(e entry) {
	m.entries = append(m.entries, e)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		parts = append(parts, m.render(e))
	}
	m.viewport.SetContent(strings.Join(parts, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) render(e entry) string {
	switch e.role {
	case roleUser:
		return userLabel.Render("You") + "\n  " + e.text + "\n"
	case roleRouter:
		label := routerLabel.Render("Router")
		if e.degraded {
			label += " " + degradedBadge.Render("(degraded)")
		}
		body := "  " + e.text
		if m.renderer != nil {
			if out, err := m.renderer.Render(e.text); err == nil {
				body = strings.TrimRight(out, "\n")
			}
		}
		return label + "\n" + body + "\n"
	case roleError:
		return errorLabel.Render("Error") + "  " + e.text + "\n"
	default:
		return systemText.Render(e.text) + "\n"
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "  Initializing..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("food-router  " + m.opts.SessionID))
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	if m.waiting {
		b.WriteString(m.spinner.View() + hintText.Render(" asking the restaurant and rider agents..."))
	} else {
		b.WriteString(hintText.Render("enter send · pgup/pgdn scroll · esc quit"))
	}
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionBusy):
		return "this conversation is still answering a previous message"
	case errors.Is(err, domain.ErrInvalidInput):
		return "say something first"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	default:
		return err.Error()
	}
}

// Run starts the full-screen chat and blocks until the user quits or ctx
// is done.
func Run(ctx context.Context, agent Agent, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, agent, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err := p.Run()
	return err
}
