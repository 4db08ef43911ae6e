// Package tui is the terminal front end: a login dialog, then the stopwatch
// with its start/stop and submit buttons and the record list.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/session"
	"github.com/sweeney/shake-timer/internal/stopwatch"
)

type tuiMode int

const (
	modeLogin tuiMode = iota
	modeTimer
)

// Options configures the terminal UI.
type Options struct {
	Stopwatch *stopwatch.Stopwatch
	Gate      *session.Gate
	// Server and Username are shown in the header; Username prefills the
	// login form.
	Server   string
	Username string
	// FrameInterval is the redraw period while the timer runs.
	FrameInterval time.Duration
}

// message types

type frameMsg struct{}

type changedMsg struct{}

type loginResultMsg struct{ err error }

type logoutResultMsg struct{ err error }

type actionResultMsg struct {
	op  string
	err error
}

// model

type model struct {
	opts     Options
	ctx      context.Context
	mode     tuiMode
	username textinput.Model
	password textinput.Model
	focus    int
	view     stopwatch.View
	cursor   int
	pending  bool // an action is waiting on the server
	frameOn  bool // a frame tick is scheduled
	status   string
	err      error
	width    int
	quitting bool
}

func newModel(ctx context.Context, opts Options) model {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = "user: "
	user.PromptStyle = styleInputPrompt
	user.CharLimit = 128
	user.SetValue(opts.Username)

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "pass: "
	pass.PromptStyle = styleInputPrompt
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128

	m := model{
		opts:     opts,
		ctx:      ctx,
		username: user,
		password: pass,
	}
	if opts.Gate.LoggedIn() {
		m.mode = modeTimer
		m.view = opts.Stopwatch.View()
	} else {
		m.setFocus(0)
		if opts.Username != "" {
			m.setFocus(1)
		}
	}
	return m
}

// Run starts the TUI and blocks until it exits. The session is closed (the
// sensor released) on the way out; the server session is left alone.
func Run(ctx context.Context, opts Options) error {
	defer opts.Gate.Close()

	p := tea.NewProgram(newModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Init starts listening for stopwatch changes.
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		m.sync()
		return m, tea.Batch(m.waitForChange(), m.scheduleFrame())

	case frameMsg:
		m.frameOn = false
		if m.opts.Stopwatch.Frame() {
			m.sync()
			return m, m.scheduleFrame()
		}
		m.sync()
		return m, nil

	case loginResultMsg:
		m.pending = false
		m.err = msg.err
		if msg.err == nil {
			m.mode = modeTimer
			m.password.SetValue("")
			m.status = "logged in"
			m.sync()
		}
		return m, nil

	case logoutResultMsg:
		m.pending = false
		m.err = msg.err
		if msg.err == nil {
			m.mode = modeLogin
			m.status = "logged out"
			m.cursor = 0
			m.setFocus(1)
			m.sync()
		}
		return m, nil

	case actionResultMsg:
		m.pending = false
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.op
		}
		m.sync()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode == modeLogin {
			return m.updateLogin(msg)
		}
		return m.updateTimer(msg)
	}

	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Next):
		m.setFocus(1 - m.focus)
		return m, nil

	case key.Matches(msg, keys.Enter):
		if m.pending {
			return m, nil
		}
		if m.focus == 0 {
			m.setFocus(1)
			return m, nil
		}
		m.pending = true
		m.err = nil
		m.status = "logging in..."
		return m, m.doLogin(api.Credentials{
			Username: m.username.Value(),
			Password: m.password.Value(),
		})
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m model) updateTimer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Toggle):
		m.opts.Stopwatch.Press()
		m.sync()
		return m, m.scheduleFrame()

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.view.Records)-1 {
			m.cursor++
		}
		return m, nil
	}

	if m.pending {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Submit):
		if !m.view.CanSubmit {
			return m, nil
		}
		return m.startAction("submitting...", m.doAction("submitted", m.opts.Stopwatch.Submit))

	case key.Matches(msg, keys.Delete):
		if m.cursor >= len(m.view.Records) {
			return m, nil
		}
		id := m.view.Records[m.cursor].ID
		return m.startAction("deleting...", m.doAction("deleted", func(ctx context.Context) error {
			return m.opts.Stopwatch.Delete(ctx, id)
		}))

	case key.Matches(msg, keys.Refresh):
		return m.startAction("refreshing...", m.doAction("refreshed", m.opts.Stopwatch.Refresh))

	case key.Matches(msg, keys.Logout):
		return m.startAction("logging out...", m.doLogout())
	}
	return m, nil
}

func (m model) startAction(status string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.pending = true
	m.err = nil
	m.status = status
	return m, cmd
}

// sync copies the stopwatch state into the model and keeps the cursor on
// the list.
func (m *model) sync() {
	m.view = m.opts.Stopwatch.View()
	if m.cursor >= len(m.view.Records) {
		m.cursor = len(m.view.Records) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.username.Focus()
		m.password.Blur()
	} else {
		m.password.Focus()
		m.username.Blur()
	}
}

// scheduleFrame starts the frame ticker if the timer runs and none is pending.
func (m *model) scheduleFrame() tea.Cmd {
	if m.frameOn || !m.view.Timer.Running {
		return nil
	}
	m.frameOn = true
	return tea.Tick(m.opts.FrameInterval, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func (m model) waitForChange() tea.Cmd {
	ch := m.opts.Stopwatch.Changed()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return changedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m model) doLogin(creds api.Credentials) tea.Cmd {
	gate, ctx := m.opts.Gate, m.ctx
	return func() tea.Msg {
		return loginResultMsg{err: gate.Login(ctx, creds)}
	}
}

func (m model) doLogout() tea.Cmd {
	gate, ctx := m.opts.Gate, m.ctx
	return func() tea.Msg {
		return logoutResultMsg{err: gate.Logout(ctx)}
	}
}

func (m model) doAction(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionResultMsg{op: op, err: fn(ctx)}
	}
}
