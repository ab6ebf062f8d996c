package lesson

import (
	"errors"
	"fmt"
)

// Load failures. Each is fatal; no partial lesson is returned.
var (
	// ErrDescriptor indicates the lesson descriptor is missing a required field
	ErrDescriptor = errors.New("invalid lesson descriptor")

	// ErrStreamParse indicates an object-shaped marks record could not be parsed
	ErrStreamParse = errors.New("malformed marks record")

	// ErrSequence indicates SSML line markers are out of order or have a gap
	ErrSequence = errors.New("SSML line numbering out of sequence")
)

// DescriptorError names the missing descriptor field.
type DescriptorError struct {
	URL   string
	Field string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("no %s in %s", e.Field, e.URL)
}

// Unwrap returns ErrDescriptor.
func (e *DescriptorError) Unwrap() error { return ErrDescriptor }

// StreamParseError identifies the offending line of the marks stream.
type StreamParseError struct {
	URL   string
	Line  int // 0-based
	Cause error
}

func (e *StreamParseError) Error() string {
	return fmt.Sprintf("could not parse row %d of %s: %v", e.Line, e.URL, e.Cause)
}

// Is matches ErrStreamParse.
func (e *StreamParseError) Is(target error) bool { return target == ErrStreamParse }

// Unwrap returns the JSON decoding error.
func (e *StreamParseError) Unwrap() error { return e.Cause }

// SequenceError reports an unexpected SSML line number.
type SequenceError struct {
	Got  int
	Want int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("line number %d does not match line count %d", e.Got, e.Want)
}

// Unwrap returns ErrSequence.
func (e *SequenceError) Unwrap() error { return ErrSequence }
