package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// ErrPlayerClosed is returned by an OtoPlayer after Close.
var ErrPlayerClosed = errors.New("player is closed")

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate   int // 44100 or 48000 Hz only
	Channels     int // 1 = mono, 2 = stereo
	BufferSize   int // device buffer in bytes
	PollInterval time.Duration
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:   44100,
		Channels:     1,
		BufferSize:   4096,
		PollInterval: 10 * time.Millisecond,
	}
}

func validateConfig(config PlayerConfig) error {
	// oto only supports these sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	return nil
}

// OtoPlayer plays PCM ranges and one-shot cues through a single oto context.
type OtoPlayer struct {
	// oto allows one context per process
	context *oto.Context
	config  PlayerConfig
	logger  *log.Logger

	mu      sync.Mutex
	active  map[*playback]struct{}
	closed  bool
	stopped sync.WaitGroup
}

// playback is one running oto player. data is retained until the player is
// closed because oto reads from it on its own goroutine.
type playback struct {
	player  *oto.Player
	data    []byte
	onEnded func()
	stop    chan struct{}
	once    sync.Once
}

// NewOtoPlayer opens the audio device.
func NewOtoPlayer(config PlayerConfig, logger *log.Logger) (*OtoPlayer, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPlayerConfig().PollInterval
	}
	if logger == nil {
		logger = log.Default()
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*config.Channels*bytesPerSample),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoPlayer{
		context: ctx,
		config:  config,
		logger:  logger,
		active:  make(map[*playback]struct{}),
	}, nil
}

// PlayRange plays [start, start+dur) of buf. onEnded may be nil.
func (p *OtoPlayer) PlayRange(buf *Buffer, start, dur time.Duration, onEnded func()) error {
	if buf == nil {
		return ErrEmptyBuffer
	}
	if buf.SampleRate != p.config.SampleRate || buf.Channels != p.config.Channels {
		return fmt.Errorf("buffer format %d Hz/%d ch does not match device %d Hz/%d ch",
			buf.SampleRate, buf.Channels, p.config.SampleRate, p.config.Channels)
	}
	return p.start(buf.Slice(start, dur), onEnded)
}

// PlayOneShot plays the whole of buf without completion notification,
// mixing with anything already playing.
func (p *OtoPlayer) PlayOneShot(buf *Buffer) error {
	if buf == nil {
		return ErrEmptyBuffer
	}
	conformed, err := buf.Conform(p.config.SampleRate, p.config.Channels)
	if err != nil {
		return err
	}
	return p.start(conformed.PCM, nil)
}

func (p *OtoPlayer) start(pcm []byte, onEnded func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}

	data := make([]byte, len(pcm))
	copy(data, pcm)

	pb := &playback{
		player:  p.context.NewPlayer(bytes.NewReader(data)),
		data:    data,
		onEnded: onEnded,
		stop:    make(chan struct{}),
	}
	p.active[pb] = struct{}{}
	pb.player.Play()

	p.stopped.Add(1)
	go p.watch(pb)
	return nil
}

// watch waits for natural end or a stop request, then releases the player.
func (p *OtoPlayer) watch(pb *playback) {
	defer p.stopped.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

poll:
	for pb.player.IsPlaying() {
		select {
		case <-pb.stop:
			pb.player.Pause()
			break poll
		case <-ticker.C:
		}
	}

	if err := pb.player.Close(); err != nil {
		p.logger.Debug("Closing oto player", "error", err)
	}

	p.mu.Lock()
	delete(p.active, pb)
	p.mu.Unlock()

	pb.data = nil
	if pb.onEnded != nil {
		pb.onEnded()
	}
}

// StopAll halts every playing range and cue. Pending onEnded callbacks fire.
func (p *OtoPlayer) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for pb := range p.active {
		pb.once.Do(func() { close(pb.stop) })
	}
}

// Close stops playback and waits for all players to be released.
func (p *OtoPlayer) Close() error {
	p.StopAll()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.stopped.Wait()
	return nil
}
