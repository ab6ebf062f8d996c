// Package speech turns a continuous recognizer's partial transcripts into a
// single yes, no or silence result per request, while playing a periodic
// listening cue that speeds up as the silence deadline approaches.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/erikh2000/comprendo-player/internal/loop"
)

// ErrNotInitialized is returned when the session is used before Init completes.
var ErrNotInitialized = errors.New("speech session not initialized")

// Recognizer is a continuous speech recognizer.
type Recognizer interface {
	// Start begins recognition for locale and calls onReady once it is
	// listening.
	Start(onReady func(), locale string) error
	// Bind registers transcript callbacks. Callbacks may run on any goroutine.
	Bind(onPartial, onFinal func(text string))
	Mute()
	Unmute()
}

// Config holds session timing.
type Config struct {
	Locale         string
	SilenceTimeout time.Duration
	PulseInterval  time.Duration
}

// DefaultConfig returns the standard Spanish-language session timing.
func DefaultConfig() Config {
	return Config{
		Locale:         "es",
		SilenceTimeout: 5000 * time.Millisecond,
		PulseInterval:  1000 * time.Millisecond,
	}
}

// DoublePulseInterval is the cue cadence used while warning of the deadline.
func (c Config) DoublePulseInterval() time.Duration {
	return c.PulseInterval / 2
}

// DoublePulseStart is when, after arming, the warning cadence begins.
func (c Config) DoublePulseStart() time.Duration {
	start := c.SilenceTimeout - 4*c.DoublePulseInterval()
	if start < 0 {
		return 0
	}
	return start
}

// Validate checks the timing values.
func (c Config) Validate() error {
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("silence timeout must be positive, got %v", c.SilenceTimeout)
	}
	if c.PulseInterval <= 0 {
		return fmt.Errorf("pulse interval must be positive, got %v", c.PulseInterval)
	}
	if c.Locale == "" {
		return errors.New("locale is required")
	}
	return nil
}

// Session owns a recognizer and classifies what it hears. Apart from Init
// and IsInitialized, methods must be called on the event loop that post
// delivers to.
type Session struct {
	config     Config
	recognizer Recognizer
	post       func(func())
	pulse      func()
	logger     *log.Logger
	lower      cases.Caser

	initMu      sync.Mutex
	initialized atomic.Bool
	logSink     atomic.Pointer[func(string)]

	// Loop-owned.
	state         State
	lastText      string
	onResult      func(Result)
	silence       *Timer
	warning       *Timer
	cadence       *Timer
	doublePulsing bool
}

// Option customizes a Session.
type Option func(*Session)

// WithPulse sets the function that plays one listening cue.
func WithPulse(fn func()) Option {
	return func(s *Session) { s.pulse = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session. Timers are scheduled on clock and
// recognizer callbacks are delivered through post.
func NewSession(config Config, r Recognizer, clock loop.Clock, post func(func()), opts ...Option) *Session {
	s := &Session{
		config:     config,
		recognizer: r,
		post:       post,
		pulse:      func() {},
		logger:     log.Default(),
		lower:      cases.Lower(language.Spanish),
		state:      StateInitializing,
		silence:    NewTimer(clock),
		warning:    NewTimer(clock),
		cadence:    NewTimer(clock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init starts the recognizer and waits for it to become ready. It may be
// called from any goroutine and returns immediately once initialized. The
// transition to READY is posted to the loop.
func (s *Session) Init(ctx context.Context, logSink func(string)) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if logSink != nil {
		s.logSink.Store(&logSink)
	}
	if s.initialized.Load() {
		return nil
	}

	ready := make(chan struct{})
	var once sync.Once
	onReady := func() { once.Do(func() { close(ready) }) }

	if err := s.recognizer.Start(onReady, s.config.Locale); err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("waiting for recognizer: %w", ctx.Err())
	}

	s.recognizer.Bind(
		func(text string) { s.post(func() { s.onPartial(text) }) },
		func(text string) { s.post(func() { s.logger.Debug("Final transcript", "text", text) }) },
	)
	s.initialized.Store(true)
	s.post(func() { s.changeState(StateReady) })
	return nil
}

// IsInitialized reports whether Init has completed. Safe from any goroutine.
// It turns true as soon as the READY transition is posted, so State may
// still report INITIALIZING until the loop runs it; anything posted after
// Init returns runs after that transition and sees READY.
func (s *Session) IsInitialized() bool {
	return s.initialized.Load()
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// StartPractice listens until the silence deadline passes, then calls
// onDone with ResultSilenceTimeout. Speech only postpones the deadline.
func (s *Session) StartPractice(onDone func(Result)) error {
	return s.start(StatePractice, onDone)
}

// StartInput listens for yes or no. onResult is called exactly once, with
// the first answer heard or with ResultSilenceTimeout.
func (s *Session) StartInput(onResult func(Result)) error {
	return s.start(StateInput, onResult)
}

func (s *Session) start(state State, cb func(Result)) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	if err := s.Enable(); err != nil {
		return err
	}
	s.changeState(state)
	s.onResult = cb
	s.startListenPulse()
	s.restartSilenceDeadline()
	return nil
}

// StopListenPulse cancels the cue and the deadline, abandoning any pending
// request.
func (s *Session) StopListenPulse() {
	s.cancelTimers()
	if s.initialized.Load() {
		s.changeState(StateReady)
	}
}

// Enable unmutes the microphone and forgets the last transcript.
func (s *Session) Enable() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	s.lastText = ""
	s.recognizer.Unmute()
	return nil
}

// Disable mutes the microphone. The recognizer keeps running.
func (s *Session) Disable() error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	s.recognizer.Mute()
	return nil
}

// changeState cancels everything armed for the previous state and drops its
// pending callback.
func (s *Session) changeState(state State) {
	if s.state != state {
		s.log(fmt.Sprintf("State changed from %s to %s", s.state, state))
	}
	s.cancelTimers()
	s.onResult = nil
	s.state = state
}

func (s *Session) cancelTimers() {
	s.silence.Cancel()
	s.warning.Cancel()
	s.cadence.Cancel()
	s.doublePulsing = false
}

func (s *Session) startListenPulse() {
	s.pulse()
	s.cadence.ArmRepeating(s.config.PulseInterval, s.pulse)
}

func (s *Session) startDoublePulse() {
	s.doublePulsing = true
	s.pulse()
	s.cadence.ArmRepeating(s.config.DoublePulseInterval(), s.pulse)
}

func (s *Session) restartSilenceDeadline() {
	if s.doublePulsing {
		s.doublePulsing = false
		s.cadence.ArmRepeating(s.config.PulseInterval, s.pulse)
	}
	s.warning.Arm(s.config.DoublePulseStart(), s.startDoublePulse)
	s.silence.Arm(s.config.SilenceTimeout, s.onSilenceDeadline)
}

func (s *Session) onSilenceDeadline() {
	s.recognizer.Mute()
	s.finish(ResultSilenceTimeout)
}

// finish returns to READY before reporting, so cb may start a new request.
func (s *Session) finish(r Result) {
	cb := s.onResult
	s.changeState(StateReady)
	s.log(fmt.Sprintf("Result %s", r))
	if cb != nil {
		cb(r)
	}
}

func (s *Session) onPartial(text string) {
	if text == s.lastText {
		return
	}
	s.lastText = text
	s.log(text)

	switch s.state {
	case StatePractice:
		s.restartSilenceDeadline()
	case StateInput:
		if r, ok := s.classify(text); ok {
			s.recognizer.Mute()
			s.finish(r)
			return
		}
		s.restartSilenceDeadline()
	}
}

// classify looks for a yes or no word in a transcript.
func (s *Session) classify(text string) (Result, bool) {
	normalized := s.lower.String(norm.NFC.String(text))
	for _, word := range strings.Fields(normalized) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		switch word {
		case "si", "sí":
			return ResultYes, true
		case "no":
			return ResultNo, true
		}
	}
	return ResultSilenceTimeout, false
}

func (s *Session) log(text string) {
	s.logger.Debug("Speech", "state", s.state, "text", text)
	if sink := s.logSink.Load(); sink != nil {
		(*sink)(text)
	}
}
