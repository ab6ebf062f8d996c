package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/erikh2000/comprendo-player/internal/manifest"
)

const statusMessageTimeout = 3 * time.Second

type (
	manifestLoadedMsg struct {
		manifest manifest.Manifest
		updated  time.Time
		err      error
	}
	lessonSelectedMsg struct{ url string }
	statusClearMsg    struct{}
)

type homeModel struct {
	common *commonModel

	spinner  spinner.Model
	filter   textinput.Model
	loaded   bool
	manifest manifest.Manifest
	updated  time.Time
	cursor   int
	status   string
}

func newHomeModel(common *commonModel) homeModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(fuchsia)

	ti := textinput.New()
	ti.Prompt = "Buscar: "
	ti.CharLimit = 64

	return homeModel{common: common, spinner: sp, filter: ti}
}

func (m homeModel) init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadManifestCmd(m.common))
}

// visible returns the lessons shown, narrowed by the filter when one is
// typed.
func (m homeModel) visible() []manifest.Entry {
	if q := m.filter.Value(); strings.TrimSpace(q) != "" {
		return m.manifest.Search(q)
	}
	return m.manifest.Lessons
}

func (m homeModel) update(msg tea.Msg) (homeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case manifestLoadedMsg:
		m.loaded = true
		m.manifest = msg.manifest
		m.updated = msg.updated
		m.cursor = 0
		if msg.err != nil {
			log.Error("Loading lesson manifest", "error", msg.err)
			m.status = "No se pudo cargar la lista de lecciones."
			return m, statusTimeout(statusMessageTimeout, statusClearMsg{})
		}
		return m, nil

	case manifestUpdatedMsg:
		m.manifest = msg.manifest
		m.updated = time.Now()
		if n := len(m.visible()); m.cursor >= n {
			m.cursor = max(0, n-1)
		}
		m.status = "Lista de lecciones actualizada."
		return m, statusTimeout(statusMessageTimeout, statusClearMsg{})

	case statusClearMsg:
		m.status = ""
		return m, nil

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filter.Focused() {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.visible())-1 {
				m.cursor++
			}
		case "/":
			m.filter.Focus()
			return m, textinput.Blink
		case "r":
			m.loaded = false
			return m, m.init()
		case "enter":
			return m, m.selectCurrent()
		}
	}
	return m, nil
}

func (m homeModel) updateFilter(msg tea.KeyMsg) (homeModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filter.Reset()
		m.filter.Blur()
		m.cursor = 0
		return m, nil
	case "enter":
		m.filter.Blur()
		return m, m.selectCurrent()
	case "up", "down":
		m.filter.Blur()
		return m.update(msg)
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m homeModel) selectCurrent() tea.Cmd {
	lessons := m.visible()
	if m.cursor < 0 || m.cursor >= len(lessons) {
		return nil
	}
	return selectLessonCmd(m.common, lessons[m.cursor].URL)
}

func (m homeModel) view() string {
	var b strings.Builder
	b.WriteString("\n" + logoStyle.Render("Comprendo") + "\n\n")

	if !m.loaded {
		fmt.Fprintf(&b, "%s Cargando…\n", m.spinner.View())
		return indent(b.String(), 2)
	}

	if m.filter.Focused() || m.filter.Value() != "" {
		b.WriteString(m.filter.View() + "\n\n")
	}

	lessons := m.visible()
	if len(lessons) == 0 {
		b.WriteString(subtleStyle("No hay lecciones.") + "\n")
	}
	width := max(m.common.width-8, 10)
	for i, e := range lessons {
		name := runewidth.Truncate(e.Name, width, ellipsis)
		if i == m.cursor {
			b.WriteString(selectedStyle("│ "+name) + "\n")
		} else {
			b.WriteString(normalStyle("  "+name) + "\n")
		}
	}

	b.WriteString("\n")
	if !m.updated.IsZero() {
		b.WriteString(subtleStyle("Actualizada "+humanize.Time(m.updated)) + "\n")
	}
	if m.status != "" {
		b.WriteString(promptStyle(m.status) + "\n")
	}
	b.WriteString(helpStyle("↑/↓ elegir • enter empezar • / buscar • r recargar • q salir"))
	return indent(b.String(), 2)
}

// COMMANDS

func loadManifestCmd(common *commonModel) tea.Cmd {
	return func() tea.Msg {
		m, _, err := common.svc.Syncer.Sync(common.ctx)
		var updated time.Time
		if age, aerr := common.svc.Syncer.Age(time.Now()); aerr == nil {
			updated = time.Now().Add(-age)
		}
		return manifestLoadedMsg{manifest: m, updated: updated, err: err}
	}
}

func selectLessonCmd(common *commonModel, url string) tea.Cmd {
	return func() tea.Msg {
		if err := manifest.SetCurrentLessonURL(common.svc.Store, url); err != nil {
			log.Warn("Could not remember current lesson", "url", url, "error", err)
		}
		return lessonSelectedMsg{url: url}
	}
}
