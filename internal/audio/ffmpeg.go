package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

// ErrFFmpegNotFound is returned when the ffmpeg binary cannot be located.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// Fetcher retrieves raw resource bytes.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// DecoderConfig controls an FFmpegDecoder.
type DecoderConfig struct {
	FFmpegPath string
	SampleRate int // 44100 or 48000
	Channels   int
	Timeout    time.Duration
	MaxPCMSize int
}

// DefaultDecoderConfig returns settings matching the default player config.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		FFmpegPath: "ffmpeg",
		SampleRate: 44100,
		Channels:   1,
		Timeout:    2 * time.Minute,
		MaxPCMSize: 500 * 1024 * 1024,
	}
}

// FFmpegDecoder fetches compressed audio and converts it to PCM with an
// ffmpeg subprocess. WAV resources are decoded in-process.
type FFmpegDecoder struct {
	fetcher Fetcher
	config  DecoderConfig
	logger  *log.Logger
}

// NewFFmpegDecoder creates a decoder that fetches through f.
func NewFFmpegDecoder(f Fetcher, config DecoderConfig, logger *log.Logger) *FFmpegDecoder {
	if logger == nil {
		logger = log.Default()
	}
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	return &FFmpegDecoder{fetcher: f, config: config, logger: logger}
}

// Validate checks that ffmpeg can be executed.
func (d *FFmpegDecoder) Validate() error {
	path, err := exec.LookPath(d.config.FFmpegPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	if err := exec.Command(path, "-version").Run(); err != nil {
		return fmt.Errorf("cannot execute ffmpeg: %w", err)
	}
	return nil
}

// Decode fetches url and returns its decoded audio.
func (d *FFmpegDecoder) Decode(ctx context.Context, url string) (*Buffer, error) {
	data, err := d.fetcher.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}

	if isWAV(data) {
		buf, err := DecodeWAV(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return buf.Conform(d.config.SampleRate, d.config.Channels)
	}

	start := time.Now()
	pcm, err := d.convert(ctx, data)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Decoded audio", "url", url, "in", len(data), "out", len(pcm), "duration", time.Since(start))
	return NewBuffer(pcm, d.config.SampleRate, d.config.Channels)
}

// convert pipes compressed audio through ffmpeg, producing s16le PCM.
func (d *FFmpegDecoder) convert(ctx context.Context, in []byte) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(d.config.SampleRate),
		"-ac", strconv.Itoa(d.config.Channels),
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stdin = bytes.NewReader(in)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Interrupt first so ffmpeg can exit cleanly; WaitDelay forces the kill.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg conversion cancelled: %w", ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
		}
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no PCM output, stderr: %s", stderr.String())
	}
	if d.config.MaxPCMSize > 0 && len(pcm) > d.config.MaxPCMSize {
		return nil, fmt.Errorf("ffmpeg PCM output too large: %d bytes (max %d)", len(pcm), d.config.MaxPCMSize)
	}
	return pcm, nil
}
