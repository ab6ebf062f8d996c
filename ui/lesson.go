package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
)

const speechLogLines = 5

type (
	lessonStartedMsg struct{ err error }
	lessonExitMsg    struct{}
)

// Pause dialog buttons.
const (
	choiceResume = iota
	choiceExit
)

type lessonModel struct {
	common *commonModel

	spinner spinner.Model
	input   textinput.Model

	url      string
	loading  bool
	name     string
	header   string
	line     string
	prompt   string
	paused   bool
	choice   int
	finished bool
	err      error
	log      []string
}

func newLessonModel(common *commonModel) lessonModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(fuchsia)

	ti := textinput.New()
	ti.Prompt = "🎤 "
	ti.Placeholder = "escribe lo que dices…"
	ti.CharLimit = 200

	return lessonModel{common: common, spinner: sp, input: ti}
}

// start resets the screen and loads the lesson at url.
func (m *lessonModel) start(url string) tea.Cmd {
	m.reset(url)
	return m.startCmd()
}

func (m *lessonModel) reset(url string) {
	m.url = url
	m.loading = true
	m.name = ""
	m.header, m.line, m.prompt = "", "", ""
	m.paused = false
	m.finished = false
	m.err = nil
	m.log = nil
	m.input.Reset()
	m.input.Focus()
}

func (m lessonModel) startCmd() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, startLessonCmd(m.common, m.url))
}

// stop pauses playback so nothing keeps sounding after the screen is left.
func (m *lessonModel) stop() {
	svc := m.common.svc
	svc.Post(svc.Engine.Pause)
	svc.Post(svc.Session.StopListenPulse)
}

func (m lessonModel) update(msg tea.Msg) (lessonModel, tea.Cmd) {
	switch msg := msg.(type) {
	case lessonStartedMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
		}
		return m, nil

	case lessonLoadedMsg:
		m.loading = false
		m.name = string(msg)
		return m, nil
	case headerMsg:
		m.header = string(msg)
		return m, nil
	case lineMsg:
		m.line = string(msg)
		return m, nil
	case promptMsg:
		m.prompt = string(msg)
		return m, nil
	case lessonEndedMsg:
		m.finished = true
		m.paused = false
		return m, nil
	case lessonErrMsg:
		m.err = msg.err
		return m, nil
	case speechLogMsg:
		m.log = append(m.log, string(msg))
		if len(m.log) > speechLogLines {
			m.log = m.log[len(m.log)-speechLogLines:]
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case m.paused:
			return m.updateDialog(msg)
		case m.err != nil && !m.loading && m.name == "":
			return m, exitLesson
		case m.finished:
			if msg.String() == "enter" || msg.String() == "esc" || msg.String() == "q" {
				return m, exitLesson
			}
			return m, nil
		}
		return m.updatePlaying(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m lessonModel) updatePlaying(msg tea.KeyMsg) (lessonModel, tea.Cmd) {
	svc := m.common.svc
	switch msg.String() {
	case "esc", "ctrl+p":
		if !svc.Engine.State().IsActive() {
			return m, nil
		}
		svc.Post(svc.Engine.Pause)
		m.paused = true
		m.choice = choiceResume
		return m, nil
	case "enter":
		text := m.input.Value()
		m.input.Reset()
		if text != "" {
			svc.Recognizer.Submit(text)
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before && v != "" {
		svc.Recognizer.Feed(v)
	}
	return m, cmd
}

func (m lessonModel) updateDialog(msg tea.KeyMsg) (lessonModel, tea.Cmd) {
	svc := m.common.svc
	switch msg.String() {
	case "left", "right", "tab", "shift+tab", "h", "l":
		m.choice = 1 - m.choice
	case "r":
		m.choice = choiceResume
		return m.confirmDialog()
	case "s", "q":
		m.choice = choiceExit
		return m.confirmDialog()
	case "esc":
		m.paused = false
		svc.Post(svc.Engine.Resume)
	case "enter", " ":
		return m.confirmDialog()
	}
	return m, nil
}

func (m lessonModel) confirmDialog() (lessonModel, tea.Cmd) {
	svc := m.common.svc
	m.paused = false
	if m.choice == choiceExit {
		m.stop()
		return m, exitLesson
	}
	m.input.Reset()
	svc.Post(svc.Engine.Resume)
	return m, nil
}

func (m lessonModel) view() string {
	width := max(m.common.width-6, 20)
	var b strings.Builder

	b.WriteString("\n" + logoStyle.Render("Comprendo") + "  ")
	b.WriteString(lessonNameStyle("Lección: "+m.name) + "\n\n")

	switch {
	case m.loading:
		fmt.Fprintf(&b, "%s Cargando lección…\n", m.spinner.View())
		return indent(b.String(), 2)
	case m.err != nil && m.name == "":
		return errorView(m.err, false)
	}

	if m.paused {
		b.WriteString(m.dialogView(width))
		return indent(b.String(), 2)
	}

	b.WriteString(headerStyle(wordwrap.String(m.header, width)) + "\n\n")
	b.WriteString(lineStyle(wordwrap.String(m.line, width)) + "\n\n")
	b.WriteString(promptStyle(m.prompt) + "\n\n")

	if m.finished {
		b.WriteString(subtleStyle("Fin de la lección. Pulsa enter para volver.") + "\n")
		return indent(b.String(), 2)
	}
	if m.err != nil {
		b.WriteString(errorTitleStyle("ERROR") + " " + m.err.Error() + "\n\n")
	}

	b.WriteString(m.input.View() + "\n\n")
	if m.common.cfg.ShowSpeechLog {
		for _, l := range m.log {
			b.WriteString(subtleStyle(runewidth.Truncate(l, width, ellipsis)) + "\n")
		}
	}
	if m.common.cfg.ShowState {
		b.WriteString(subtleStyle(m.common.svc.Engine.State().String()) + "\n")
	}
	b.WriteString(helpStyle("esc pausa • enter enviar • ctrl+c salir"))
	return indent(b.String(), 2)
}

func (m lessonModel) dialogView(width int) string {
	resume, exit := buttonStyle("Reanudar"), buttonStyle("Salir")
	if m.choice == choiceResume {
		resume = activeButtonStyle("Reanudar")
	} else {
		exit = activeButtonStyle("Salir")
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		headerStyle("Pausado"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, resume, "  ", exit),
	)
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, dialogStyle.Render(body))
}

// COMMANDS

func exitLesson() tea.Msg { return lessonExitMsg{} }

// startLessonCmd readies speech and sound effects, then starts the lesson.
// The lesson name arrives separately once playback begins.
func startLessonCmd(common *commonModel, url string) tea.Cmd {
	return func() tea.Msg {
		svc := common.svc
		logSink := func(text string) {
			log.Debug("Speech", "event", text)
			svc.Events.SpeechLog(text)
		}
		if err := svc.Session.Init(common.ctx, logSink); err != nil {
			return lessonStartedMsg{err: fmt.Errorf("speech: %w", err)}
		}
		if err := svc.Effects.Load(); err != nil {
			log.Warn("Sound effects unavailable", "error", err)
		}
		if err := svc.Engine.Start(common.ctx, url); err != nil {
			return lessonStartedMsg{err: err}
		}
		return lessonStartedMsg{}
	}
}
