// Package ui provides the terminal screens of the lesson player.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/erikh2000/comprendo-player/internal/manifest"
	"github.com/erikh2000/comprendo-player/internal/player"
	"github.com/erikh2000/comprendo-player/internal/soundfx"
	"github.com/erikh2000/comprendo-player/internal/speech"
)

const ellipsis = "…"

// Services are the components the screens drive. Engine and Session
// methods that touch loop-owned state are always called through Post.
type Services struct {
	Post       func(func())
	Engine     *player.Engine
	Session    *speech.Session
	Recognizer *speech.TextRecognizer
	Effects    *soundfx.Effects
	Syncer     *manifest.Syncer
	Store      manifest.Store
	Events     *Events
}

// NewProgram returns a new Tea program.
func NewProgram(ctx context.Context, cfg Config, svc *Services) *tea.Program {
	log.Debug("Starting comprendo", "lesson", cfg.LessonURL, "refresh", cfg.RefreshInterval)
	m := newModel(ctx, cfg, svc)
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// state is the top-level application state.
type state int

const (
	stateShowHome state = iota
	stateShowLesson
)

func (s state) String() string {
	return map[state]string{
		stateShowHome:   "showing lesson list",
		stateShowLesson: "showing lesson",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	ctx    context.Context
	cfg    Config
	svc    *Services
	width  int
	height int
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// Sub-models
	home   homeModel
	lesson lessonModel
}

func newModel(ctx context.Context, cfg Config, svc *Services) model {
	common := &commonModel{ctx: ctx, cfg: cfg, svc: svc, width: 80, height: 24}
	m := model{
		common: common,
		state:  stateShowHome,
		home:   newHomeModel(common),
		lesson: newLessonModel(common),
	}
	if cfg.LessonURL != "" {
		m.state = stateShowLesson
		m.lesson.reset(cfg.LessonURL)
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.common.svc.Events.wait()}

	if m.common.cfg.RefreshInterval > 0 {
		svc := m.common.svc
		go svc.Syncer.Run(m.common.ctx, m.common.cfg.RefreshInterval, svc.Events.ManifestUpdated)
	}

	switch m.state {
	case stateShowHome:
		cmds = append(cmds, m.home.init())
	case stateShowLesson:
		cmds = append(cmds, m.lesson.startCmd())
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.lesson.stop()
			return m, tea.Quit
		case "ctrl+z":
			return m, tea.Suspend
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	// Events arrive on one channel; keep listening after each.
	case lessonLoadedMsg, headerMsg, lineMsg, promptMsg, lessonEndedMsg, lessonErrMsg, speechLogMsg:
		cmds = append(cmds, m.common.svc.Events.wait())
		var cmd tea.Cmd
		m.lesson, cmd = m.lesson.update(msg)
		return m, tea.Batch(append(cmds, cmd)...)

	case manifestUpdatedMsg:
		cmds = append(cmds, m.common.svc.Events.wait())
		var cmd tea.Cmd
		m.home, cmd = m.home.update(msg)
		return m, tea.Batch(append(cmds, cmd)...)

	case lessonSelectedMsg:
		m.state = stateShowLesson
		return m, m.lesson.start(msg.url)

	case lessonExitMsg:
		m.state = stateShowHome
		if !m.home.loaded {
			return m, m.home.init()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateShowHome:
		m.home, cmd = m.home.update(msg)
	case stateShowLesson:
		m.lesson, cmd = m.lesson.update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	switch m.state { //nolint:exhaustive
	case stateShowLesson:
		return m.lesson.view()
	default:
		return m.home.view()
	}
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle("ERROR"),
		err,
		subtleStyle(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}

func statusTimeout(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}
