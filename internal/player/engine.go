// Package player drives a loaded lesson line by line, handing control to the
// speech session at practice pauses and yes/no branch points.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/erikh2000/comprendo-player/internal/audio"
	"github.com/erikh2000/comprendo-player/internal/lesson"
	"github.com/erikh2000/comprendo-player/internal/speech"
)

// ErrNotInitialized is returned by Start when the speech session has not
// been initialized.
var ErrNotInitialized = errors.New("speech session not initialized")

// DefaultPrompt asks the learner to respond.
const DefaultPrompt = "Responde, por favor."

// Loader loads lessons.
type Loader interface {
	Load(ctx context.Context, url string) (*lesson.Lesson, error)
}

// SpeechSession is the part of speech.Session the engine drives.
type SpeechSession interface {
	IsInitialized() bool
	StartPractice(onDone func(speech.Result)) error
	StartInput(onResult func(speech.Result)) error
	StopListenPulse()
	Enable() error
	Disable() error
}

// Callbacks receive display updates. All are optional and run on the event
// loop.
type Callbacks struct {
	OnLoaded func(name string)
	OnHeader func(text string)
	OnLine   func(text string)
	OnPrompt func(text string)
	OnEnded  func()
	OnError  func(err error)
}

// Config holds engine settings.
type Config struct {
	Prompt string
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{Prompt: DefaultPrompt}
}

// Engine plays one lesson at a time. Start may be called from any
// goroutine; Pause and Resume must run on the event loop that post delivers
// to.
type Engine struct {
	loader    Loader
	speech    SpeechSession
	player    audio.Player
	post      func(func())
	callbacks Callbacks
	config    Config
	logger    *log.Logger

	mu     sync.RWMutex
	lesson *lesson.Lesson
	state  atomic.Int32

	// Loop-owned. gen identifies the current line playback; callbacks
	// carrying an older value are dropped.
	lineNo     int
	inputEvent *lesson.InputEvent
	gen        uint64
}

// New creates an engine.
func New(loader Loader, session SpeechSession, player audio.Player, post func(func()), callbacks Callbacks, config Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	e := &Engine{
		loader:    loader,
		speech:    session,
		player:    player,
		post:      post,
		callbacks: callbacks,
		config:    config,
		logger:    logger,
		lineNo:    lesson.BeforeFirstLine,
	}
	e.state.Store(int32(StateUnloaded))
	return e
}

// State returns the current state. Safe from any goroutine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	if old := e.State(); old != s {
		e.logger.Debug("Player state changed", "from", old, "to", s, "line", e.lineNo)
	}
	e.state.Store(int32(s))
}

// LessonName returns the loaded lesson's name, or "" before a lesson loads.
func (e *Engine) LessonName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lesson == nil {
		return ""
	}
	return e.lesson.Name
}

// LineNo returns the index of the current line. Call it on the event loop.
func (e *Engine) LineNo() int {
	return e.lineNo
}

// Start loads the lesson at url and, once loaded, begins playing it from
// the first line. A failed load leaves the engine unchanged.
func (e *Engine) Start(ctx context.Context, url string) error {
	if !e.speech.IsInitialized() {
		return ErrNotInitialized
	}
	l, err := e.loader.Load(ctx, url)
	if err != nil {
		return fmt.Errorf("load lesson: %w", err)
	}
	e.post(func() { e.begin(l) })
	return nil
}

func (e *Engine) begin(l *lesson.Lesson) {
	e.gen++
	e.player.StopAll()
	e.speech.StopListenPulse()

	e.mu.Lock()
	e.lesson = l
	e.mu.Unlock()
	if e.callbacks.OnLoaded != nil {
		e.callbacks.OnLoaded(l.Name)
	}

	e.emitPrompt("")
	e.emitHeader("")
	e.emitLine("")
	e.lineNo = lesson.BeforeFirstLine
	e.playLine(e.lineNo + 1)
}

// Pause stops audio and listening. Completions that were already on their
// way are ignored.
func (e *Engine) Pause() {
	if !e.State().IsActive() || e.State() == StatePaused {
		return
	}
	e.gen++
	e.setState(StatePaused)
	e.player.StopAll()
	e.speech.StopListenPulse()
	if err := e.speech.Disable(); err != nil {
		e.logger.Warn("Disabling speech on pause", "error", err)
	}
}

// Resume replays the line that was interrupted, from its start.
func (e *Engine) Resume() {
	if e.State() != StatePaused {
		return
	}
	e.lineNo--
	if e.lineNo < lesson.BeforeFirstLine {
		e.lineNo = lesson.BeforeFirstLine
	}
	if err := e.speech.Enable(); err != nil {
		e.fail(err)
		return
	}
	e.playLine(e.lineNo + 1)
}

// playLine starts line n, or finishes the lesson when n is past the end.
func (e *Engine) playLine(n int) {
	l := e.currentLesson()
	if n >= len(l.Lines) {
		e.finish()
		return
	}

	e.gen++
	gen := e.gen
	e.lineNo = n
	e.inputEvent = nil
	line := l.Lines[n]

	err := e.player.PlayRange(l.Audio, line.Start(), line.Duration(), func() {
		e.post(func() { e.onLineAudioEnded(gen) })
	})
	if err != nil {
		e.fail(fmt.Errorf("play line %d: %w", n, err))
		return
	}

	if line.IsHeader() {
		e.emitHeader(line.Text)
		e.emitLine("")
	} else {
		e.emitLine(line.Text)
		e.emitHeader("")
	}
	e.emitPrompt("")
	e.setState(StatePlaying)
}

func (e *Engine) onLineAudioEnded(gen uint64) {
	if e.State() == StatePaused {
		return
	}
	if gen != e.gen || e.State() != StatePlaying {
		return
	}

	l := e.currentLesson()
	if l.IsPracticeAfter(e.lineNo) {
		e.emitPrompt(e.config.Prompt)
		e.setState(StateWaitingForPractice)
		if err := e.speech.StartPractice(func(speech.Result) { e.onPracticeEnded(gen) }); err != nil {
			e.fail(err)
		}
		return
	}

	if ev, ok := l.InputEventAfter(e.lineNo); ok {
		e.inputEvent = &ev
		e.emitPrompt(e.config.Prompt)
		e.setState(StateWaitingForInput)
		if err := e.speech.StartInput(func(r speech.Result) { e.onInputResult(gen, r) }); err != nil {
			e.fail(err)
		}
		return
	}

	e.playLine(e.lineNo + 1)
}

func (e *Engine) onPracticeEnded(gen uint64) {
	if gen != e.gen || e.State() != StateWaitingForPractice {
		return
	}
	e.playLine(e.lineNo + 1)
}

func (e *Engine) onInputResult(gen uint64, r speech.Result) {
	if gen != e.gen || e.State() != StateWaitingForInput || e.inputEvent == nil {
		return
	}

	next := nextLineNo(*e.inputEvent, r)
	e.logger.Debug("Input result", "result", r, "line", e.lineNo, "next", next)
	if next <= lesson.BeforeFirstLine {
		e.finish()
		return
	}
	e.playLine(next)
}

// nextLineNo picks the branch target for r, falling through to the line
// after the event when the target is absent.
func nextLineNo(ev lesson.InputEvent, r speech.Result) int {
	var target *int
	switch r {
	case speech.ResultYes:
		target = ev.YesLineNo
	case speech.ResultNo:
		target = ev.NoLineNo
	case speech.ResultSilenceTimeout:
		target = ev.SilenceLineNo
	}
	if target == nil {
		return ev.AfterLineNo + 1
	}
	return *target
}

func (e *Engine) finish() {
	e.gen++
	e.inputEvent = nil
	e.emitPrompt("")
	e.setState(StateFinished)
	e.logger.Info("Lesson finished", "name", e.LessonName())
	if e.callbacks.OnEnded != nil {
		e.callbacks.OnEnded()
	}
}

func (e *Engine) fail(err error) {
	e.logger.Error("Lesson playback failed", "error", err, "line", e.lineNo)
	if e.callbacks.OnError != nil {
		e.callbacks.OnError(err)
	}
	e.finish()
}

func (e *Engine) currentLesson() *lesson.Lesson {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lesson
}

func (e *Engine) emitHeader(text string) {
	if e.callbacks.OnHeader != nil {
		e.callbacks.OnHeader(text)
	}
}

func (e *Engine) emitLine(text string) {
	if e.callbacks.OnLine != nil {
		e.callbacks.OnLine(text)
	}
}

func (e *Engine) emitPrompt(text string) {
	if e.callbacks.OnPrompt != nil {
		e.callbacks.OnPrompt(text)
	}
}
