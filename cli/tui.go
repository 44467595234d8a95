package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fahmaliyi/otpvault/account"
	"github.com/fahmaliyi/otpvault/totp"
	"github.com/fahmaliyi/otpvault/vault"
)

type tuiState int

const (
	stateList tuiState = iota
	stateShow
	stateAdd
	stateLocked
)

type (
	tickMsg     time.Time
	lockedMsg   struct{ err error }
	unlockedMsg struct{ err error }
	savedMsg    struct {
		note string
		err  error
	}
)

type model struct {
	s   *Session
	ctx context.Context

	entries  []account.Entry
	cursor   int
	state    tuiState
	inputs   []textinput.Model
	pass     textinput.Model
	selected account.Entry
	qr       string
	msg      string
	confirm  bool
	busy     bool
	now      time.Time
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	codeStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
)

// RunTUI runs the full-screen view until the user quits.
func RunTUI(ctx context.Context, s *Session) error {
	p := tea.NewProgram(newModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newModel(ctx context.Context, s *Session) model {
	labels := []string{"Label", "Issuer", "Secret"}
	inputs := make([]textinput.Model, len(labels))
	for i, l := range labels {
		ti := textinput.New()
		ti.Placeholder = l
		ti.CharLimit = 256
		inputs[i] = ti
	}
	inputs[2].EchoMode = textinput.EchoPassword
	inputs[2].EchoCharacter = '*'

	pass := textinput.New()
	pass.Placeholder = "Passphrase"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'

	m := model{
		s:      s,
		ctx:    ctx,
		inputs: inputs,
		pass:   pass,
		now:    s.now(),
	}
	if s.vault.IsOpen() {
		m.entries = s.vault.Accounts()
	} else {
		m.state = stateLocked
		m.pass.Focus()
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.now = m.s.now()
		if m.state != stateLocked && !m.busy && m.s.idleExpired() {
			m.busy = true
			return m, tea.Batch(tick(), m.lockCmd())
		}
		return m, tick()
	case lockedMsg:
		m.busy = false
		m.toLocked()
		if msg.err != nil {
			m.msg = "lock: " + msg.err.Error()
		} else {
			m.msg = "Locked."
		}
		return m, textinput.Blink
	case unlockedMsg:
		m.busy = false
		if msg.err != nil {
			m.msg = "Wrong passphrase."
			m.pass.SetValue("")
			return m, nil
		}
		m.s.touch()
		m.pass.Blur()
		m.pass.SetValue("")
		m.state = stateList
		m.msg = ""
		m.refresh()
		return m, nil
	case savedMsg:
		m.busy = false
		m.refresh()
		if msg.err != nil {
			m.msg = "save failed: " + msg.err.Error()
		} else {
			m.msg = msg.note
		}
		return m, nil
	case tea.KeyMsg:
		m.s.touch()
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	switch m.state {
	case stateList:
		return updateList(m, msg)
	case stateShow:
		return updateShow(m, msg)
	case stateAdd:
		return updateAdd(m, msg)
	case stateLocked:
		return updateLocked(m, msg)
	default:
		return m, nil
	}
}

func (m model) View() string {
	switch m.state {
	case stateList:
		return viewList(m)
	case stateShow:
		return viewShow(m)
	case stateAdd:
		return viewAdd(m)
	case stateLocked:
		return viewLocked(m)
	default:
		return "Unknown state"
	}
}

func (m *model) refresh() {
	m.entries = m.s.vault.Accounts()
	if m.cursor >= len(m.entries) {
		m.cursor = max(0, len(m.entries)-1)
	}
}

func (m *model) toLocked() {
	m.state = stateLocked
	m.entries = nil
	m.selected = account.Entry{}
	m.qr = ""
	m.confirm = false
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
	m.pass.SetValue("")
	m.pass.Focus()
}

func (m model) lockCmd() tea.Cmd {
	return func() tea.Msg {
		_, err := m.s.sched.Do(m.ctx, vault.Close{})
		return lockedMsg{err: err}
	}
}

func (m model) unlockCmd(passphrase string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.s.sched.Do(m.ctx, vault.Open{Passphrase: passphrase})
		return unlockedMsg{err: err}
	}
}

// saveCmd persists an edit made since prev was taken, rolling the list back
// to prev when the save fails.
func (m model) saveCmd(note string, prev []account.Entry) tea.Cmd {
	return func() tea.Msg {
		err := m.s.commit(m.ctx, prev)
		return savedMsg{note: note, err: err}
	}
}

// --- List ---
func updateList(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	pendingDelete := m.confirm
	m.confirm = false

	switch key.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "J", "K":
		to := m.cursor + 1
		if key.String() == "K" {
			to = m.cursor - 1
		}
		if m.busy {
			return m, nil
		}
		prev := m.s.vault.Accounts()
		if !m.s.vault.Move(m.cursor, to) {
			return m, nil
		}
		m.cursor = to
		m.busy = true
		m.refresh()
		return m, m.saveCmd("", prev)
	case "enter":
		if len(m.entries) == 0 {
			return m, nil
		}
		m.selected = m.entries[m.cursor]
		qr, err := QRString(m.selected.URI())
		if err != nil {
			qr = errStyle.Render(err.Error())
		}
		m.qr = qr
		m.state = stateShow
	case "a":
		m.state = stateAdd
		m.msg = ""
		m.inputs[0].Focus()
		return m, textinput.Blink
	case "d":
		if len(m.entries) == 0 || m.busy {
			return m, nil
		}
		e := m.entries[m.cursor]
		if !pendingDelete {
			m.confirm = true
			m.msg = fmt.Sprintf("Press d again to delete %s", e.Title())
			return m, nil
		}
		prev := m.s.vault.Accounts()
		m.s.vault.Remove(e)
		m.busy = true
		m.refresh()
		return m, m.saveCmd("Deleted "+e.Title(), prev)
	case "c":
		if len(m.entries) == 0 {
			return m, nil
		}
		code, err := m.entries[m.cursor].Code(m.s.now())
		if err == nil {
			err = copyWithClear(m.s.clip, code, m.s.clipClear)
		}
		if err != nil {
			m.msg = "copy: " + err.Error()
		} else if m.s.clipClear > 0 {
			m.msg = fmt.Sprintf("Code copied! (clears in %s)", m.s.clipClear)
		} else {
			m.msg = "Code copied!"
		}
	case "l":
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.lockCmd()
	}
	return m, nil
}

func viewList(m model) string {
	var b strings.Builder
	left := int(totp.Remaining(m.now).Seconds())
	period := int(totp.Period.Seconds())

	b.WriteString(titleStyle.Render("Accounts") + "\n\n")
	if len(m.entries) == 0 {
		b.WriteString(dimStyle.Render("No accounts yet, press a to add one.") + "\n")
	}
	for i, e := range m.entries {
		code, err := e.Code(m.now)
		if err != nil {
			code = "------"
		}
		line := fmt.Sprintf("%s  %s", codeStyle.Render(formatCode(code)), e.Title())
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "\n%s %2ds\n", countdownBar(left, period, period), left)
	if m.msg != "" {
		b.WriteString("\n" + msgStyle.Render(m.msg) + "\n")
	}
	b.WriteString(dimStyle.Render("\nj/k=move, J/K=reorder, enter=show, a=add, d=delete, c=copy, l=lock, q=quit"))
	return b.String()
}

// --- Show ---
func updateShow(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "q":
			m.state = stateList
			m.selected = account.Entry{}
			m.qr = ""
		}
	}
	return m, nil
}

func viewShow(m model) string {
	e := m.selected
	s := titleStyle.Render(e.Title()) + "\n\n"
	s += fmt.Sprintf("Label:  %s\nIssuer: %s\nURI:    %s\n\n", e.Label, e.Issuer, e.URI())
	s += m.qr
	s += dimStyle.Render("\nEsc to return")
	return s
}

// --- Add ---
func updateAdd(m model, msg tea.Msg) (model, tea.Cmd) {
	var cmds []tea.Cmd
	for i := range m.inputs {
		if m.inputs[i].Focused() {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "shift+tab", "down", "up":
			m.focusNext(key.String() == "shift+tab" || key.String() == "up")
		case "esc":
			m.leaveAdd()
		case "enter":
			if !m.inputs[len(m.inputs)-1].Focused() {
				m.focusNext(false)
				break
			}
			e := account.New(m.inputs[0].Value(), m.inputs[1].Value(), m.inputs[2].Value())
			switch {
			case !e.Valid():
				m.msg = "Need a label and a base32 secret."
			case m.s.vault.Contains(e):
				m.msg = "Already stored as " + e.Title()
			case m.busy:
			default:
				prev := m.s.vault.Accounts()
				m.s.vault.Add(e)
				m.leaveAdd()
				m.busy = true
				m.refresh()
				m.cursor = len(m.entries) - 1
				return m, m.saveCmd("Added "+e.Title(), prev)
			}
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *model) leaveAdd() {
	m.state = stateList
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
}

// focusNext moves focus to the next or previous input.
func (m *model) focusNext(backward bool) {
	n := len(m.inputs)
	for i := 0; i < n; i++ {
		if m.inputs[i].Focused() {
			m.inputs[i].Blur()
			if backward {
				m.inputs[(i-1+n)%n].Focus()
			} else {
				m.inputs[(i+1)%n].Focus()
			}
			break
		}
	}
}

func viewAdd(m model) string {
	s := titleStyle.Render("Add Account") + "\n\n"
	for _, ti := range m.inputs {
		s += fmt.Sprintf("%-7s %s\n", ti.Placeholder+":", ti.View())
	}
	if m.msg != "" {
		s += "\n" + errStyle.Render(m.msg) + "\n"
	}
	s += dimStyle.Render("\nTab to move, Enter on Secret to save, Esc to cancel")
	return s
}

// --- Locked ---
func updateLocked(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, tea.Quit
		case "enter":
			if m.busy || m.pass.Value() == "" {
				return m, nil
			}
			m.busy = true
			m.msg = "Unlocking..."
			return m, m.unlockCmd(m.pass.Value())
		}
	}
	var cmd tea.Cmd
	m.pass, cmd = m.pass.Update(msg)
	return m, cmd
}

func viewLocked(m model) string {
	s := titleStyle.Render("Locked") + "\n\n"
	s += m.pass.View() + "\n"
	if m.msg != "" {
		s += "\n" + msgStyle.Render(m.msg) + "\n"
	}
	s += dimStyle.Render("\nEnter to unlock, Esc to quit")
	return s
}
