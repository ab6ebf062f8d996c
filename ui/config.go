package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Lesson to open straight away instead of the lesson list.
	LessonURL string

	// How often the lesson list is refreshed from the manifest URL. Zero
	// disables refreshing.
	RefreshInterval time.Duration

	// For debugging the UI
	ShowSpeechLog bool `env:"COMPRENDO_SHOW_SPEECH_LOG" envDefault:"false"`
	ShowState     bool `env:"COMPRENDO_SHOW_STATE"      envDefault:"false"`
}
