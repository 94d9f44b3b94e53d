// Package tui renders a survey session in the terminal. It only reads
// session snapshots and forwards user intents; it never changes session
// state itself.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/fbchat/internal/models"
	"github.com/joescharf/fbchat/internal/output"
	"github.com/joescharf/fbchat/internal/session"
)

// Controller receives user intents. *session.Machine implements it.
type Controller interface {
	StartNewSession()
	SubmitRating(rating int)
	SubmitFeedback(text string)
	SubmitExperienceRating(rating int)
	OpenIssueReport()
	CancelIssueReport()
	ReportIssue(text string)
}

type stateMsg session.State

type closedMsg struct{}

func waitState(ch <-chan session.State) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return stateMsg(s)
	}
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctrl   Controller
	states <-chan session.State
	state  session.State

	input     textinput.Model
	timeline  viewport.Model
	spinner   spinner.Model
	theme     theme
	issueMode bool

	width  int
	height int
}

// New creates a Model that renders snapshots from states and sends intents
// to ctrl.
func New(ctrl Controller, states <-chan session.State) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 2000
	input.Placeholder = "Type your answer and press enter"

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(80, 20)
	timeline.MouseWheelEnabled = true

	return Model{
		ctrl:     ctrl,
		states:   states,
		state:    session.State{Connection: models.ConnectionDisconnected, Phase: models.PhaseIdle},
		input:    input,
		timeline: timeline,
		spinner:  sp,
		theme:    newTheme(),
		width:    80,
		height:   24,
	}
}

// Run starts the terminal program and blocks until the user quits, the
// session machine stops or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, states <-chan session.State, altScreen bool) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithMouseCellMotion()}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	_, err := tea.NewProgram(New(ctrl, states), opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitState(m.states))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.applyState(session.State(msg))
		return m, waitState(m.states)

	case closedMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.typing() {
			return m.updateTyping(msg)
		}
		return m.updateCommand(msg)
	}

	var cmd tea.Cmd
	m.timeline, cmd = m.timeline.Update(msg)
	return m, cmd
}

// typing reports whether keystrokes go to the text field.
func (m Model) typing() bool {
	return m.issueMode || m.state.CanSendFeedback()
}

func (m Model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		switch {
		case m.issueMode:
			m.ctrl.ReportIssue(text)
			m.issueMode = false
		case m.state.CanRate() && isRating(text):
			m.ctrl.SubmitRating(int(text[0] - '0'))
		default:
			m.ctrl.SubmitFeedback(text)
		}
		m.input.Reset()
		return m, nil

	case tea.KeyEsc:
		if m.issueMode {
			m.ctrl.CancelIssueReport()
			m.issueMode = false
			m.input.Reset()
		}
		return m, nil

	case tea.KeyCtrlR:
		if !m.issueMode && m.state.CanReportIssue() {
			m.openIssue()
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateCommand(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case "n":
		m.ctrl.StartNewSession()
		return m, nil
	case "!":
		if m.state.CanReportIssue() {
			m.openIssue()
		}
		return m, nil
	case "1", "2", "3", "4", "5":
		rating := int(key[0] - '0')
		switch {
		case m.state.CanRate():
			m.ctrl.SubmitRating(rating)
		case m.state.CanRateExperience():
			m.ctrl.SubmitExperienceRating(rating)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.timeline, cmd = m.timeline.Update(msg)
	return m, cmd
}

func (m *Model) openIssue() {
	m.ctrl.OpenIssueReport()
	m.issueMode = true
	m.input.Reset()
	m.input.Focus()
	m.input.Placeholder = "Describe the problem and press enter"
}

func (m *Model) applyState(s session.State) {
	m.state = s
	if m.issueMode && !s.Phase.Active() {
		m.issueMode = false
	}
	if m.typing() {
		m.input.Focus()
		if !m.issueMode {
			m.input.Placeholder = "Type your answer and press enter"
		}
	} else {
		m.input.Blur()
	}
	m.layout()
}

func (m *Model) layout() {
	m.timeline.Width = max(20, m.width-4)
	m.timeline.Height = max(5, m.height-9)
	atBottom := m.timeline.AtBottom()
	m.timeline.SetContent(m.renderTimeline())
	if atBottom || m.timeline.TotalLineCount() <= m.timeline.Height {
		m.timeline.GotoBottom()
	}
}

func isRating(s string) bool {
	return len(s) == 1 && s[0] >= '1' && s[0] <= '5'
}

func (m Model) View() string {
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		m.theme.title.Render("Feedback Bot"), "  ",
		m.theme.statusLabel(m.state.Connection),
	)
	body := m.theme.panel.Width(max(20, m.width-2)).Render(m.timeline.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderPrompt(), m.renderHelp())
}

func (m Model) renderTimeline() string {
	if len(m.state.Transcript) == 0 {
		return m.theme.subtitle.Render("Waiting for the survey to start...")
	}
	width := max(20, m.timeline.Width)
	lines := make([]string, 0, len(m.state.Transcript))
	for _, msg := range m.state.Transcript {
		line := fmt.Sprintf("%s %s %s",
			m.theme.time.Render(msg.At.Local().Format("15:04")),
			m.theme.speaker(msg.Origin),
			m.theme.text.Render(msg.Text),
		)
		lines = append(lines, lipgloss.NewStyle().Width(width).Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPrompt() string {
	s := m.state
	var parts []string

	if s.Session.Loading {
		parts = append(parts, m.spinner.View()+" "+m.theme.subtitle.Render("Loading next question..."))
	}

	switch {
	case m.issueMode:
		parts = append(parts, m.theme.prompt.Render("Report an issue"), m.input.View())
	case s.Phase.Terminal():
		parts = append(parts, m.theme.prompt.Render("This session is over. Press n to start a new one."))
	case s.CanSendFeedback():
		label := "Tell us more about your rating"
		if s.Mode == models.FeedbackInline && s.Phase == models.PhaseAwaitingRating {
			label = "Answer with 1-5 or type your feedback"
		}
		parts = append(parts, m.theme.prompt.Render(label), m.input.View())
	case s.CanRate():
		parts = append(parts, m.theme.prompt.Render("Rate this question: ")+ratingScale())
	case s.CanRateExperience():
		parts = append(parts, m.theme.prompt.Render("How would you rate your overall experience? ")+ratingScale())
	case s.Stranded():
		parts = append(parts, m.theme.subtitle.Render("Not connected. Press n to try again."))
	}

	if err := s.LastRejection; err != nil {
		parts = append(parts, m.theme.warn.Render(err.Error()))
	}
	return strings.Join(parts, "\n")
}

func ratingScale() string {
	items := make([]string, 5)
	for i := range items {
		items[i] = fmt.Sprintf("%d %s", i+1, output.RatingFace(i+1))
	}
	return strings.Join(items, "  ")
}

func (m Model) renderHelp() string {
	var keys []string
	if m.typing() {
		keys = append(keys, "enter send")
		if m.issueMode {
			keys = append(keys, "esc cancel")
		} else {
			keys = append(keys, "ctrl+r report issue")
		}
		keys = append(keys, "ctrl+c quit")
	} else {
		keys = append(keys, "1-5 rate", "! report issue", "n new session", "q quit")
	}
	return m.theme.help.Render(strings.Join(keys, " • "))
}
