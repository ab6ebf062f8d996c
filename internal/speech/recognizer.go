package speech

import (
	"errors"
	"sync"
)

// ErrRecognizerStarted is returned when Start is called twice.
var ErrRecognizerStarted = errors.New("recognizer already started")

// TextRecognizer is a Recognizer fed with typed text instead of audio. Each
// Feed is delivered as a partial transcript unless the recognizer is muted.
type TextRecognizer struct {
	mu        sync.Mutex
	started   bool
	muted     bool
	locale    string
	onPartial func(string)
	onFinal   func(string)
}

// NewTextRecognizer creates a muted recognizer.
func NewTextRecognizer() *TextRecognizer {
	return &TextRecognizer{muted: true}
}

// Start records locale and reports readiness immediately.
func (r *TextRecognizer) Start(onReady func(), locale string) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRecognizerStarted
	}
	r.started = true
	r.locale = locale
	r.mu.Unlock()

	onReady()
	return nil
}

// Bind registers transcript callbacks.
func (r *TextRecognizer) Bind(onPartial, onFinal func(string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPartial = onPartial
	r.onFinal = onFinal
}

// Mute stops delivering text.
func (r *TextRecognizer) Mute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muted = true
}

// Unmute resumes delivering text.
func (r *TextRecognizer) Unmute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.muted = false
}

// Muted reports whether text is being dropped.
func (r *TextRecognizer) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}

// Feed delivers text as a partial transcript. It reports whether the text
// was delivered.
func (r *TextRecognizer) Feed(text string) bool {
	r.mu.Lock()
	cb := r.onPartial
	muted := r.muted
	r.mu.Unlock()

	if muted || cb == nil {
		return false
	}
	cb(text)
	return true
}

// Submit delivers text as a final transcript.
func (r *TextRecognizer) Submit(text string) bool {
	r.mu.Lock()
	cb := r.onFinal
	muted := r.muted
	r.mu.Unlock()

	if muted || cb == nil {
		return false
	}
	cb(text)
	return true
}
