package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/erikh2000/comprendo-player/internal/manifest"
	"github.com/erikh2000/comprendo-player/internal/player"
)

// Messages sent from the playback engine and speech session.
type (
	lessonLoadedMsg string
	headerMsg       string
	lineMsg         string
	promptMsg       string
	lessonEndedMsg  struct{}
	lessonErrMsg    struct{ err error }
	speechLogMsg    string

	manifestUpdatedMsg struct{ manifest manifest.Manifest }
)

// Events carries engine and speech callbacks, which run on the event loop,
// to the Bubble Tea program. Messages are delivered in the order they were
// sent.
type Events struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewEvents creates an event channel.
func NewEvents() *Events {
	return &Events{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// PlayerCallbacks returns engine callbacks that forward to the UI.
func (e *Events) PlayerCallbacks() player.Callbacks {
	return player.Callbacks{
		OnLoaded: func(name string) { e.send(lessonLoadedMsg(name)) },
		OnHeader: func(text string) { e.send(headerMsg(text)) },
		OnLine:   func(text string) { e.send(lineMsg(text)) },
		OnPrompt: func(text string) { e.send(promptMsg(text)) },
		OnEnded:  func() { e.send(lessonEndedMsg{}) },
		OnError:  func(err error) { e.send(lessonErrMsg{err}) },
	}
}

// SpeechLog forwards a speech session log line.
func (e *Events) SpeechLog(text string) {
	e.send(speechLogMsg(text))
}

// ManifestUpdated forwards a refreshed lesson manifest.
func (e *Events) ManifestUpdated(m manifest.Manifest) {
	e.send(manifestUpdatedMsg{m})
}

// Close stops delivery. Senders blocked on a full channel return.
func (e *Events) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	case <-e.done:
	}
}

// wait returns a command that delivers the next event.
func (e *Events) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-e.ch:
			return msg
		case <-e.done:
			return nil
		}
	}
}
