package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"github.com/erikh2000/comprendo-player/internal/audio"
	"github.com/erikh2000/comprendo-player/internal/lesson"
	"github.com/erikh2000/comprendo-player/internal/loop"
	"github.com/erikh2000/comprendo-player/internal/manifest"
	"github.com/erikh2000/comprendo-player/internal/player"
	"github.com/erikh2000/comprendo-player/internal/soundfx"
	"github.com/erikh2000/comprendo-player/internal/speech"
	"github.com/erikh2000/comprendo-player/internal/store"
)

type stubLoader struct{ err error }

func (s stubLoader) Load(context.Context, string) (*lesson.Lesson, error) {
	if s.err != nil {
		return nil, s.err
	}
	buf, _ := audio.NewBuffer(make([]byte, 2000*2), 1000, 1)
	return &lesson.Lesson{
		Name:  "Uno",
		Audio: buf,
		Lines: []lesson.Line{
			{From: 0, To: 1000, Text: "Saludos:"},
			{From: 1000, To: 2000, Text: "Hola."},
		},
	}, nil
}

type stubFetcher struct{ body string }

func (f stubFetcher) Get(context.Context, string) ([]byte, error) {
	return []byte(f.body), nil
}

func direct(fn func()) { fn() }

func testServices(t *testing.T, loader player.Loader) *Services {
	t.Helper()
	fsys := afero.NewMemMapFs()
	st, err := store.New(fsys, "/data", 0)
	if err != nil {
		t.Fatal(err)
	}
	backend := audio.NewMockBackend()
	rec := speech.NewTextRecognizer()
	session := speech.NewSession(speech.DefaultConfig(), rec, loop.NewFakeClock(), direct)
	events := NewEvents()
	t.Cleanup(events.Close)

	return &Services{
		Post:       direct,
		Engine:     player.New(loader, session, backend, direct, events.PlayerCallbacks(), player.DefaultConfig(), nil),
		Session:    session,
		Recognizer: rec,
		Effects:    soundfx.New(backend, fsys, "/sounds", nil),
		Syncer: manifest.NewSyncer("https://example.com/m.json", stubFetcher{
			body: `{"lessons":[{"name":"Saludos","url":"https://example.com/1.json"},{"name":"Comida","url":"https://example.com/2.json"}]}`,
		}, st, nil),
		Store:  st,
		Events: events,
	}
}

func newTestCommon(t *testing.T, loader player.Loader) *commonModel {
	return &commonModel{ctx: context.Background(), svc: testServices(t, loader), width: 80, height: 24}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain feeds queued engine events to the lesson model.
func drain(m lessonModel) lessonModel {
	for {
		select {
		case msg := <-m.common.svc.Events.ch:
			m, _ = m.update(msg)
		default:
			return m
		}
	}
}

func TestHomeSelectsLesson(t *testing.T) {
	common := newTestCommon(t, stubLoader{})
	m := newHomeModel(common)

	m, _ = m.update(loadManifestCmd(common)())
	if !m.loaded || len(m.manifest.Lessons) != 2 {
		t.Fatalf("manifest not loaded: %+v", m.manifest)
	}
	view := m.view()
	for _, want := range []string{"Saludos", "Comida", "Actualizada"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m, _ = m.update(key("down"))
	_, cmd := m.update(key("enter"))
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	msg, ok := cmd().(lessonSelectedMsg)
	if !ok || msg.url != "https://example.com/2.json" {
		t.Fatalf("selected %+v, want lesson 2", msg)
	}
	if url, _ := manifest.CurrentLessonURL(common.svc.Store); url != msg.url {
		t.Errorf("current lesson = %q, want %q", url, msg.url)
	}
}

func TestHomeFilter(t *testing.T) {
	common := newTestCommon(t, stubLoader{})
	m := newHomeModel(common)
	m, _ = m.update(loadManifestCmd(common)())

	m, _ = m.update(key("/"))
	if !m.filter.Focused() {
		t.Fatal("filter not focused after /")
	}
	for _, r := range "com" {
		m, _ = m.update(key(string(r)))
	}
	got := m.visible()
	if len(got) != 1 || got[0].Name != "Comida" {
		t.Errorf("visible() = %+v, want [Comida]", got)
	}

	m, _ = m.update(key("esc"))
	if len(m.visible()) != 2 {
		t.Errorf("visible() after clearing filter = %d lessons, want 2", len(m.visible()))
	}
}

func TestLessonStartsAndShowsName(t *testing.T) {
	common := newTestCommon(t, stubLoader{})
	m := newLessonModel(common)
	_ = m.start("https://example.com/1.json")

	m, _ = m.update(startLessonCmd(common, m.url)())
	m = drain(m)

	if m.loading || m.err != nil {
		t.Fatalf("loading = %v, err = %v", m.loading, m.err)
	}
	view := m.view()
	if !strings.Contains(view, "Lección: Uno") {
		t.Errorf("view missing lesson name:\n%s", view)
	}
	if m.header != "Saludos:" {
		t.Errorf("header = %q, want Saludos:", m.header)
	}
	if !common.svc.Session.IsInitialized() {
		t.Error("speech session not initialized")
	}
}

func TestLessonLoadError(t *testing.T) {
	common := newTestCommon(t, stubLoader{err: lesson.ErrSequence})
	m := newLessonModel(common)
	_ = m.start("https://example.com/1.json")

	m, _ = m.update(startLessonCmd(common, m.url)())
	if !errors.Is(m.err, lesson.ErrSequence) {
		t.Fatalf("err = %v, want ErrSequence", m.err)
	}
	_, cmd := m.update(key("enter"))
	if cmd == nil {
		t.Fatal("no way back after load error")
	}
	if _, ok := cmd().(lessonExitMsg); !ok {
		t.Error("enter after load error did not exit")
	}
}

func TestPauseDialog(t *testing.T) {
	common := newTestCommon(t, stubLoader{})
	engine := common.svc.Engine
	m := newLessonModel(common)
	_ = m.start("u")
	m, _ = m.update(startLessonCmd(common, m.url)())
	m = drain(m)

	m, _ = m.update(key("esc"))
	if !m.paused || engine.State() != player.StatePaused {
		t.Fatalf("paused = %v, engine = %v", m.paused, engine.State())
	}
	if !strings.Contains(m.view(), "Pausado") {
		t.Error("pause dialog not shown")
	}

	m, _ = m.update(key("enter"))
	if m.paused || engine.State() != player.StatePlaying {
		t.Fatalf("after Reanudar: paused = %v, engine = %v", m.paused, engine.State())
	}

	m, _ = m.update(key("esc"))
	m, _ = m.update(key("right"))
	_, cmd := m.update(key("enter"))
	if engine.State() != player.StatePaused {
		t.Errorf("engine = %v after Salir, want PAUSED", engine.State())
	}
	if cmd == nil {
		t.Fatal("Salir produced no command")
	}
	if _, ok := cmd().(lessonExitMsg); !ok {
		t.Error("Salir did not leave the lesson")
	}
}

func TestEventsCloseUnblocksWait(t *testing.T) {
	e := NewEvents()
	e.Close()
	if msg := e.wait()(); msg != nil {
		t.Errorf("wait() after Close = %v, want nil", msg)
	}
	// sending after Close must not block
	e.SpeechLog("hola")
}

func TestModelOpensLessonFromConfig(t *testing.T) {
	svc := testServices(t, stubLoader{})
	m := newModel(context.Background(), Config{LessonURL: "https://example.com/1.json"}, svc)
	if m.state != stateShowLesson {
		t.Fatalf("state = %v, want %v", m.state, stateShowLesson)
	}
	if m.lesson.url != "https://example.com/1.json" || !m.lesson.loading {
		t.Errorf("lesson url = %q, loading = %v", m.lesson.url, m.lesson.loading)
	}

	next, _ := m.Update(lessonExitMsg{})
	if got := next.(model).state; got != stateShowHome {
		t.Errorf("state after exit = %v, want %v", got, stateShowHome)
	}
}
