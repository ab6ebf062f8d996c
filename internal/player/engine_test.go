package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erikh2000/comprendo-player/internal/audio"
	"github.com/erikh2000/comprendo-player/internal/lesson"
	"github.com/erikh2000/comprendo-player/internal/loop"
	"github.com/erikh2000/comprendo-player/internal/speech"
)

type stubLoader struct {
	lesson *lesson.Lesson
	err    error
	calls  int
}

func (s *stubLoader) Load(context.Context, string) (*lesson.Lesson, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.lesson, nil
}

func intp(n int) *int { return &n }

// testLesson has a practice pause after line 1 and a branch after line 2:
// yes falls through to 3, no jumps to 4, silence ends the lesson.
func testLesson(t *testing.T) *lesson.Lesson {
	t.Helper()
	buf, err := audio.NewBuffer(make([]byte, 5000*2), 1000, 1)
	if err != nil {
		t.Fatal(err)
	}
	return &lesson.Lesson{
		Name:  "Uno",
		Audio: buf,
		Lines: []lesson.Line{
			{From: 0, To: 1000, Text: "Saludos:"},
			{From: 1000, To: 2000, Text: "Hola."},
			{From: 2000, To: 3000, Text: "¿Tienes hambre?"},
			{From: 3000, To: 4000, Text: "Sí, tengo hambre."},
			{From: 4000, To: 5000, Text: "Adiós."},
		},
		PracticeAfterLineNos: []int{1},
		InputEvents: []lesson.InputEvent{
			{AfterLineNo: 2, NoLineNo: intp(4), SilenceLineNo: intp(lesson.BeforeFirstLine)},
		},
	}
}

type harness struct {
	t       *testing.T
	clock   *loop.FakeClock
	rec     *speech.MockRecognizer
	session *speech.Session
	backend *audio.MockBackend
	loader  *stubLoader
	engine  *Engine

	loaded, header, line, prompt string
	ended                        int
}

func direct(fn func()) { fn() }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   loop.NewFakeClock(),
		rec:     &speech.MockRecognizer{},
		backend: audio.NewMockBackend(),
		loader:  &stubLoader{lesson: testLesson(t)},
	}
	h.session = speech.NewSession(speech.DefaultConfig(), h.rec, h.clock, direct)
	h.engine = New(h.loader, h.session, h.backend, direct, Callbacks{
		OnLoaded: func(s string) { h.loaded = s },
		OnHeader: func(s string) { h.header = s },
		OnLine:   func(s string) { h.line = s },
		OnPrompt: func(s string) { h.prompt = s },
		OnEnded:  func() { h.ended++ },
	}, DefaultConfig(), nil)
	return h
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.session.Init(context.Background(), nil); err != nil {
		h.t.Fatalf("Init() error = %v", err)
	}
	if err := h.engine.Start(context.Background(), "https://example.com/l1.json"); err != nil {
		h.t.Fatalf("Start() error = %v", err)
	}
}

// finishLine completes the current line's audio.
func (h *harness) finishLine() {
	h.t.Helper()
	if !h.backend.Finish() {
		h.t.Fatal("no line audio playing")
	}
}

func (h *harness) expect(state State, lineNo int) {
	h.t.Helper()
	if got := h.engine.State(); got != state {
		h.t.Errorf("State() = %v, want %v", got, state)
	}
	if got := h.engine.LineNo(); got != lineNo {
		h.t.Errorf("LineNo() = %d, want %d", got, lineNo)
	}
}

// toInput plays through to the branch point after line 2.
func (h *harness) toInput() {
	h.t.Helper()
	h.start()
	h.finishLine()
	h.finishLine()
	h.clock.Advance(5 * time.Second)
	h.finishLine()
	h.expect(StateWaitingForInput, 2)
}

func TestStartPlaysFirstLine(t *testing.T) {
	h := newHarness(t)
	if h.engine.LessonName() != "" {
		t.Errorf("LessonName() before load = %q", h.engine.LessonName())
	}
	h.start()

	h.expect(StatePlaying, 0)
	if h.engine.LessonName() != "Uno" || h.loaded != "Uno" {
		t.Errorf("LessonName() = %q, OnLoaded got %q; want Uno", h.engine.LessonName(), h.loaded)
	}
	if h.header != "Saludos:" || h.line != "" {
		t.Errorf("header, line = %q, %q; want Saludos:, empty", h.header, h.line)
	}
	ranges := h.backend.Ranges()
	if len(ranges) != 1 || ranges[0].Start != 0 || ranges[0].Dur != time.Second {
		t.Errorf("Ranges() = %+v, want one 0s+1s range", ranges)
	}

	h.finishLine()
	h.expect(StatePlaying, 1)
	if h.line != "Hola." || h.header != "" {
		t.Errorf("header, line = %q, %q; want empty, Hola.", h.header, h.line)
	}
}

func TestPracticeAdvancesAfterSilence(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.finishLine()
	h.finishLine()

	h.expect(StateWaitingForPractice, 1)
	if h.prompt != DefaultPrompt {
		t.Errorf("prompt = %q, want %q", h.prompt, DefaultPrompt)
	}
	if h.session.State() != speech.StatePractice {
		t.Errorf("speech state = %v, want PRACTICE", h.session.State())
	}

	h.rec.Say("bueno, pues")
	h.clock.Advance(5 * time.Second)
	h.expect(StatePlaying, 2)
	if h.prompt != "" {
		t.Errorf("prompt = %q after practice, want empty", h.prompt)
	}
}

func TestBranchResolution(t *testing.T) {
	tests := []struct {
		name      string
		answer    func(h *harness)
		wantState State
		wantLine  int
		wantEnded int
	}{
		{
			name:      "yes falls through when target absent",
			answer:    func(h *harness) { h.rec.Say("hola si") },
			wantState: StatePlaying,
			wantLine:  3,
		},
		{
			name:      "no jumps to target",
			answer:    func(h *harness) { h.rec.Say("no") },
			wantState: StatePlaying,
			wantLine:  4,
		},
		{
			name:      "silence at sentinel ends lesson",
			answer:    func(h *harness) { h.clock.Advance(5 * time.Second) },
			wantState: StateFinished,
			wantLine:  2,
			wantEnded: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.toInput()
			if h.prompt != DefaultPrompt {
				t.Errorf("prompt = %q, want %q", h.prompt, DefaultPrompt)
			}

			tt.answer(h)
			h.expect(tt.wantState, tt.wantLine)
			if h.ended != tt.wantEnded {
				t.Errorf("ended = %d, want %d", h.ended, tt.wantEnded)
			}
			if h.prompt != "" {
				t.Errorf("prompt = %q after answer, want empty", h.prompt)
			}
		})
	}
}

func TestPlayingPastLastLineFinishes(t *testing.T) {
	h := newHarness(t)
	h.toInput()
	h.rec.Say("no")
	h.finishLine()

	h.expect(StateFinished, 4)
	if h.ended != 1 {
		t.Errorf("ended = %d, want 1", h.ended)
	}
	if h.backend.Playing() != 0 {
		t.Errorf("Playing() = %d after finish", h.backend.Playing())
	}
}

func TestPauseIgnoresLateCompletion(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.finishLine()
	h.expect(StatePlaying, 1)

	// the completion is already on its way when the user pauses
	late := h.backend.TakePending()
	h.engine.Pause()
	for _, fn := range late {
		fn()
	}
	h.expect(StatePaused, 1)
	if n := len(h.backend.Ranges()); n != 2 {
		t.Errorf("%d ranges played, want 2", n)
	}
	if !h.rec.Muted() {
		t.Error("microphone open while paused")
	}

	h.engine.Resume()
	h.expect(StatePlaying, 1)
	ranges := h.backend.Ranges()
	if last := ranges[len(ranges)-1]; last.Start != time.Second || last.Dur != time.Second {
		t.Errorf("resumed range = %+v, want line 1 from its start", last)
	}
	if h.line != "Hola." {
		t.Errorf("line = %q after resume, want Hola.", h.line)
	}
}

func TestPauseStopsAudioCompletionsFromFiring(t *testing.T) {
	h := newHarness(t)
	h.start()

	// StopAll delivers the interrupted range's completion
	h.engine.Pause()
	h.expect(StatePaused, 0)
	if h.backend.Stops() < 2 {
		t.Errorf("Stops() = %d, want audio stopped on pause", h.backend.Stops())
	}

	h.engine.Resume()
	h.expect(StatePlaying, 0)
	if h.header != "Saludos:" {
		t.Errorf("header = %q after resume, want Saludos:", h.header)
	}
}

func TestPauseDuringInputCancelsDeadline(t *testing.T) {
	h := newHarness(t)
	h.toInput()

	h.engine.Pause()
	h.clock.Advance(30 * time.Second)
	h.rec.Say("si")
	h.expect(StatePaused, 2)
	if h.ended != 0 {
		t.Errorf("ended = %d while paused", h.ended)
	}

	h.engine.Resume()
	h.expect(StatePlaying, 2)
	if h.rec.Muted() {
		t.Error("microphone still muted after resume")
	}
	h.finishLine()
	h.expect(StateWaitingForInput, 2)
}

func TestPauseResumeNoOps(t *testing.T) {
	h := newHarness(t)
	h.engine.Pause()
	h.expect(StateUnloaded, lesson.BeforeFirstLine)
	h.engine.Resume()
	h.expect(StateUnloaded, lesson.BeforeFirstLine)

	h.start()
	h.engine.Resume()
	h.expect(StatePlaying, 0)
	h.engine.Pause()
	h.engine.Pause()
	h.expect(StatePaused, 0)
}

func TestStartRequiresInitializedSpeech(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Start(context.Background(), "https://example.com/l1.json")
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Start() error = %v, want ErrNotInitialized", err)
	}
	if h.loader.calls != 0 {
		t.Errorf("loader called %d times before speech init", h.loader.calls)
	}
	h.expect(StateUnloaded, lesson.BeforeFirstLine)
}

func TestStartLoadFailureLeavesEngineUnloaded(t *testing.T) {
	h := newHarness(t)
	h.loader.err = lesson.ErrSequence
	_ = h.session.Init(context.Background(), nil)

	err := h.engine.Start(context.Background(), "https://example.com/l1.json")
	if !errors.Is(err, lesson.ErrSequence) {
		t.Fatalf("Start() error = %v, want ErrSequence", err)
	}
	h.expect(StateUnloaded, lesson.BeforeFirstLine)
	if h.engine.LessonName() != "" {
		t.Errorf("LessonName() = %q after failed load", h.engine.LessonName())
	}
}

func TestPlayErrorFinishesLesson(t *testing.T) {
	h := newHarness(t)
	var gotErr error
	h.engine.callbacks.OnError = func(err error) { gotErr = err }
	h.backend.PlayErr = errors.New("device lost")
	h.start()

	h.expect(StateFinished, 0)
	if gotErr == nil {
		t.Error("OnError not called")
	}
}

func TestNextLineNo(t *testing.T) {
	ev := lesson.InputEvent{AfterLineNo: 5, YesLineNo: intp(0), SilenceLineNo: intp(lesson.BeforeFirstLine)}
	tests := []struct {
		result speech.Result
		want   int
	}{
		{speech.ResultYes, 0},
		{speech.ResultNo, 6},
		{speech.ResultSilenceTimeout, lesson.BeforeFirstLine},
	}
	for _, tt := range tests {
		if got := nextLineNo(ev, tt.result); got != tt.want {
			t.Errorf("nextLineNo(%v) = %d, want %d", tt.result, got, tt.want)
		}
	}
}
