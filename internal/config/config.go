// Package config holds the player's settings and loads them from Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/erikh2000/comprendo-player/internal/audio"
	"github.com/erikh2000/comprendo-player/internal/fetch"
	"github.com/erikh2000/comprendo-player/internal/player"
	"github.com/erikh2000/comprendo-player/internal/speech"
)

// DefaultManifestURL is where the published lesson manifest lives.
const DefaultManifestURL = "http://seespacelabs-comprendo.s3-website-us-east-1.amazonaws.com/lesson-manifest.json"

// Config contains all player settings.
type Config struct {
	Manifest ManifestConfig `yaml:"manifest"`
	Speech   SpeechConfig   `yaml:"speech"`
	Audio    AudioConfig    `yaml:"audio"`
	Sound    SoundConfig    `yaml:"sound"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Store    StoreConfig    `yaml:"store"`
	Lesson   LessonConfig   `yaml:"lesson"`
	Debug    bool           `yaml:"debug"`
}

// ManifestConfig locates the lesson manifest.
type ManifestConfig struct {
	URL             string        `yaml:"url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// SpeechConfig tunes listening.
type SpeechConfig struct {
	Locale         string        `yaml:"locale"`
	SilenceTimeout time.Duration `yaml:"silence_timeout"`
	PulseInterval  time.Duration `yaml:"pulse_interval"`
}

// AudioConfig selects the output device format and decoder.
type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	BufferSize int           `yaml:"buffer_size"`
	FFmpeg     string        `yaml:"ffmpeg"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SoundConfig locates the cue sounds.
type SoundConfig struct {
	Dir string `yaml:"dir"`
}

// FetchConfig limits network access.
type FetchConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// StoreConfig locates local persistence.
type StoreConfig struct {
	Dir              string `yaml:"dir"`
	CompressionLevel int    `yaml:"compression_level"`
}

// LessonConfig holds lesson display settings.
type LessonConfig struct {
	Prompt string `yaml:"prompt"`
}

// DefaultConfig returns a Config with sensible defaults. Empty directories
// are resolved to the user's data directory at startup.
func DefaultConfig() Config {
	sc := speech.DefaultConfig()
	fc := fetch.DefaultConfig()
	dc := audio.DefaultDecoderConfig()
	pc := audio.DefaultPlayerConfig()
	return Config{
		Manifest: ManifestConfig{
			URL:             DefaultManifestURL,
			RefreshInterval: 5 * time.Minute,
		},
		Speech: SpeechConfig{
			Locale:         sc.Locale,
			SilenceTimeout: sc.SilenceTimeout,
			PulseInterval:  sc.PulseInterval,
		},
		Audio: AudioConfig{
			SampleRate: pc.SampleRate,
			BufferSize: pc.BufferSize,
			FFmpeg:     dc.FFmpegPath,
			Timeout:    dc.Timeout,
		},
		Fetch: FetchConfig{
			RequestsPerMinute: fc.RequestsPerMinute,
			Timeout:           fc.Timeout,
		},
		Store: StoreConfig{
			CompressionLevel: 3,
		},
		Lesson: LessonConfig{
			Prompt: player.DefaultPrompt,
		},
	}
}

// SetDefaults registers the defaults with v so they show up in Get calls
// and can be overridden by flags, env and the config file.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("manifest.url", d.Manifest.URL)
	v.SetDefault("manifest.refresh_interval", d.Manifest.RefreshInterval.String())
	v.SetDefault("speech.locale", d.Speech.Locale)
	v.SetDefault("speech.silence_timeout", d.Speech.SilenceTimeout.String())
	v.SetDefault("speech.pulse_interval", d.Speech.PulseInterval.String())
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.buffer_size", d.Audio.BufferSize)
	v.SetDefault("audio.ffmpeg", d.Audio.FFmpeg)
	v.SetDefault("audio.timeout", d.Audio.Timeout.String())
	v.SetDefault("sound.dir", "")
	v.SetDefault("fetch.requests_per_minute", d.Fetch.RequestsPerMinute)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout.String())
	v.SetDefault("store.dir", "")
	v.SetDefault("store.compression_level", d.Store.CompressionLevel)
	v.SetDefault("lesson.prompt", d.Lesson.Prompt)
	v.SetDefault("debug", false)
}

// LoadFromViper reads the configuration from v, falling back to defaults
// for unset keys, and validates it.
func LoadFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("manifest.url") {
		cfg.Manifest.URL = v.GetString("manifest.url")
	}
	if v.IsSet("manifest.refresh_interval") {
		cfg.Manifest.RefreshInterval = v.GetDuration("manifest.refresh_interval")
	}

	if v.IsSet("speech.locale") {
		cfg.Speech.Locale = v.GetString("speech.locale")
	}
	if v.IsSet("speech.silence_timeout") {
		cfg.Speech.SilenceTimeout = v.GetDuration("speech.silence_timeout")
	}
	if v.IsSet("speech.pulse_interval") {
		cfg.Speech.PulseInterval = v.GetDuration("speech.pulse_interval")
	}

	if v.IsSet("audio.sample_rate") {
		cfg.Audio.SampleRate = v.GetInt("audio.sample_rate")
	}
	if v.IsSet("audio.buffer_size") {
		cfg.Audio.BufferSize = v.GetInt("audio.buffer_size")
	}
	if v.IsSet("audio.ffmpeg") {
		cfg.Audio.FFmpeg = v.GetString("audio.ffmpeg")
	}
	if v.IsSet("audio.timeout") {
		cfg.Audio.Timeout = v.GetDuration("audio.timeout")
	}

	if v.IsSet("sound.dir") {
		cfg.Sound.Dir = ExpandPath(v.GetString("sound.dir"))
	}

	if v.IsSet("fetch.requests_per_minute") {
		cfg.Fetch.RequestsPerMinute = v.GetInt("fetch.requests_per_minute")
	}
	if v.IsSet("fetch.timeout") {
		cfg.Fetch.Timeout = v.GetDuration("fetch.timeout")
	}

	if v.IsSet("store.dir") {
		cfg.Store.Dir = ExpandPath(v.GetString("store.dir"))
	}
	if v.IsSet("store.compression_level") {
		cfg.Store.CompressionLevel = v.GetInt("store.compression_level")
	}

	if v.IsSet("lesson.prompt") {
		cfg.Lesson.Prompt = v.GetString("lesson.prompt")
	}
	cfg.Debug = v.GetBool("debug")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Manifest.URL == "" {
		return fmt.Errorf("manifest url cannot be empty")
	}
	if c.Manifest.RefreshInterval != 0 && c.Manifest.RefreshInterval < 10*time.Second {
		return fmt.Errorf("manifest refresh_interval must be 0 (off) or at least 10s, got %v", c.Manifest.RefreshInterval)
	}

	if err := c.SpeechConfig().Validate(); err != nil {
		return fmt.Errorf("speech config: %w", err)
	}

	validSampleRates := []int{44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.Audio.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.Audio.SampleRate, validSampleRates)
	}
	if c.Audio.FFmpeg == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}

	if c.Fetch.RequestsPerMinute < 1 {
		return fmt.Errorf("fetch requests_per_minute must be positive, got %d", c.Fetch.RequestsPerMinute)
	}
	if c.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch timeout must be at least 1 second, got %v", c.Fetch.Timeout)
	}

	if c.Store.CompressionLevel < 0 || c.Store.CompressionLevel > 22 {
		return fmt.Errorf("store compression_level must be between 0 and 22, got %d", c.Store.CompressionLevel)
	}

	if strings.TrimSpace(c.Lesson.Prompt) == "" {
		return fmt.Errorf("lesson prompt cannot be empty")
	}
	return nil
}

// SpeechConfig returns the speech session settings.
func (c *Config) SpeechConfig() speech.Config {
	return speech.Config{
		Locale:         c.Speech.Locale,
		SilenceTimeout: c.Speech.SilenceTimeout,
		PulseInterval:  c.Speech.PulseInterval,
	}
}

// FetchConfig returns the fetch client settings.
func (c *Config) FetchConfig() fetch.Config {
	fc := fetch.DefaultConfig()
	fc.RequestsPerMinute = c.Fetch.RequestsPerMinute
	fc.Timeout = c.Fetch.Timeout
	return fc
}

// DecoderConfig returns the ffmpeg decoder settings. Lesson audio is decoded
// to the output device's format so ranges play without conversion.
func (c *Config) DecoderConfig() audio.DecoderConfig {
	dc := audio.DefaultDecoderConfig()
	dc.FFmpegPath = c.Audio.FFmpeg
	dc.SampleRate = c.Audio.SampleRate
	dc.Timeout = c.Audio.Timeout
	return dc
}

// PlayerConfig returns the audio output settings.
func (c *Config) PlayerConfig() audio.PlayerConfig {
	pc := audio.DefaultPlayerConfig()
	pc.SampleRate = c.Audio.SampleRate
	pc.Channels = c.DecoderConfig().Channels
	if c.Audio.BufferSize > 0 {
		pc.BufferSize = c.Audio.BufferSize
	}
	return pc
}

// PlayerEngineConfig returns the playback engine settings.
func (c *Config) PlayerEngineConfig() player.Config {
	return player.Config{Prompt: c.Lesson.Prompt}
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}
