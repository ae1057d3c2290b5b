package register

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/pubsub"
	"github.com/zjrosen/signup/internal/registration"
)

// Update handles messages for the register screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pubsub.Event[registration.State]:
		// Snapshot rather than payload: the broker may have dropped
		// intermediate events, the flow always has the latest state.
		m.state = m.flow.Snapshot()
		cmds := []tea.Cmd{m.listener.Listen()}
		if msg.Type == pubsub.NavigateEvent && msg.Payload.NavigateTo != "" {
			nav := NavigateMsg{Destination: msg.Payload.NavigateTo, Email: msg.Payload.SubmittedEmail}
			cmds = append(cmds, func() tea.Msg { return nav })
		}
		return m, tea.Batch(cmds...)

	case sendDoneMsg:
		m.state = m.flow.Snapshot()
		logOutcome("verification send", msg.err)
		return m, nil

	case pollDoneMsg:
		m.state = m.flow.Snapshot()
		logOutcome("verification check", msg.err)
		return m, nil

	case submitDoneMsg:
		m.state = m.flow.Snapshot()
		logOutcome("submit", msg.err)
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		return m.SetSize(msg.Width, msg.Height), nil

	case tea.MouseMsg:
		if m.cfg.Mouse && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionRelease {
			return m.handleClick(msg)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Cursor blink and other input housekeeping.
	if isInput(m.focus) {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		return m.moveFocus(1)

	case key.Matches(msg, m.keys.PrevField):
		return m.moveFocus(-1)

	case key.Matches(msg, m.keys.Verify):
		return m.requestVerification()

	case key.Matches(msg, m.keys.Refresh):
		return m.poll()

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Activate):
		switch m.focus {
		case slotVerify:
			return m.requestVerification()
		case slotSubmit:
			return m.submit()
		default:
			return m.moveFocus(1)
		}
	}

	if !isInput(m.focus) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.syncField(m.focus)
	return m, cmd
}

// syncField pushes the input value of s into the flow when it changed.
func (m *Model) syncField(s slot) {
	v := m.inputs[s].Value()
	form := m.state.Form
	switch s {
	case slotName:
		if v == form.Name {
			return
		}
		m.flow.SetName(v)
	case slotEmail:
		if v == form.Email {
			return
		}
		m.flow.SetEmail(v)
	case slotPassword:
		if v == form.Password {
			return
		}
		m.flow.SetPassword(v)
	case slotConfirm:
		if v == form.ConfirmPassword {
			return
		}
		m.flow.SetConfirmPassword(v)
	default:
		return
	}
	m.state = m.flow.Snapshot()
}

func (m Model) moveFocus(delta int) (Model, tea.Cmd) {
	order := m.slots()
	idx := 0
	for i, s := range order {
		if s == m.focus {
			idx = i
			break
		}
	}
	next := order[(idx+delta+len(order))%len(order)]
	return m.focusSlot(next)
}

// focusSlot moves focus to s. Leaving the email field checks whether the
// address has been verified in the meantime.
func (m Model) focusSlot(s slot) (Model, tea.Cmd) {
	leaving := m.focus
	m.setFocus(s)

	var cmds []tea.Cmd
	if isInput(s) {
		cmds = append(cmds, textinput.Blink)
	}
	if leaving == slotEmail && s != slotEmail && m.flow.Snapshot().CanPoll() {
		var cmd tea.Cmd
		m, cmd = m.poll()
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) requestVerification() (Model, tea.Cmd) {
	flow := m.flow
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return sendDoneMsg{err: flow.RequestEmailVerification(context.Background())}
	})
}

func (m Model) poll() (Model, tea.Cmd) {
	flow := m.flow
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		_, err := flow.PollVerificationStatus(context.Background())
		return pollDoneMsg{err: err}
	})
}

func (m Model) submit() (Model, tea.Cmd) {
	flow := m.flow
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return submitDoneMsg{err: flow.Submit(context.Background())}
	})
}

func (m Model) handleClick(msg tea.MouseMsg) (Model, tea.Cmd) {
	for _, s := range m.slots() {
		z := zone.Get(zoneID(s))
		if z == nil || !z.InBounds(msg) {
			continue
		}
		var focusCmd tea.Cmd
		m, focusCmd = m.focusSlot(s)
		switch s {
		case slotVerify:
			var cmd tea.Cmd
			m, cmd = m.requestVerification()
			return m, tea.Batch(focusCmd, cmd)
		case slotSubmit:
			var cmd tea.Cmd
			m, cmd = m.submit()
			return m, tea.Batch(focusCmd, cmd)
		}
		return m, focusCmd
	}
	return m, nil
}

func logOutcome(op string, err error) {
	switch {
	case err == nil:
		log.Debug(log.CatUI, op+" done")
	case registration.IsGuard(err):
		log.Debug(log.CatUI, op+" refused", "reason", err)
	default:
		log.Debug(log.CatUI, op+" failed", "error", err)
	}
}
