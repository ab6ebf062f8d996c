// Package lesson loads narrated lessons: a JSON descriptor, an SSML text
// blob carrying the line texts, and a newline-delimited stream of timing
// marks that places lines, practice pauses and yes/no branch points on the
// lesson audio.
package lesson

import (
	"time"

	"github.com/erikh2000/comprendo-player/internal/audio"
)

// BeforeFirstLine is the line pointer before playback begins. Reached as a
// forward branch target it ends the lesson.
const BeforeFirstLine = -1

// Line is one spoken line. From is inclusive and To exclusive, both in
// milliseconds from the start of the lesson audio.
type Line struct {
	From int64
	To   int64
	Text string
}

// Start returns the line's offset into the lesson audio.
func (l Line) Start() time.Duration {
	return time.Duration(l.From) * time.Millisecond
}

// Duration returns how long the line plays.
func (l Line) Duration() time.Duration {
	return time.Duration(l.To-l.From) * time.Millisecond
}

// IsHeader reports whether the line introduces a section.
func (l Line) IsHeader() bool {
	return len(l.Text) > 0 && l.Text[len(l.Text)-1] == ':'
}

// InputEvent is a yes/no branch point after a line. A nil target falls
// through to AfterLineNo+1.
type InputEvent struct {
	AfterLineNo   int
	YesLineNo     *int
	NoLineNo      *int
	SilenceLineNo *int
}

// Lesson is a fully loaded lesson. It is not modified after Load returns.
type Lesson struct {
	Name                 string
	Audio                *audio.Buffer
	Lines                []Line
	PracticeAfterLineNos []int
	InputEvents          []InputEvent
}

// IsPracticeAfter reports whether a practice pause follows lineNo.
func (l *Lesson) IsPracticeAfter(lineNo int) bool {
	for _, n := range l.PracticeAfterLineNos {
		if n == lineNo {
			return true
		}
	}
	return false
}

// InputEventAfter returns the input event that follows lineNo, if any.
func (l *Lesson) InputEventAfter(lineNo int) (InputEvent, bool) {
	for _, e := range l.InputEvents {
		if e.AfterLineNo == lineNo {
			return e, true
		}
	}
	return InputEvent{}, false
}
