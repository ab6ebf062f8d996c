// Package soundfx loads and plays the short cue sounds used during lessons.
package soundfx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/erikh2000/comprendo-player/internal/audio"
)

// ListenPulseFile is the file name of the listening cue.
const ListenPulseFile = "listen-pulse.wav"

// Listen pulse tone used when no WAV file is installed.
const (
	pulseFrequency  = 880.0
	pulseDuration   = 120 * time.Millisecond
	pulseSampleRate = 44100
	pulseAmplitude  = 0.4
)

// Effects holds the loaded cue sounds.
type Effects struct {
	player audio.Player
	fs     afero.Fs
	dir    string
	logger *log.Logger

	mu          sync.RWMutex
	listenPulse *audio.Buffer
}

// New creates an Effects that reads its sounds from dir on fsys. Nothing is
// loaded until Load is called.
func New(player audio.Player, fsys afero.Fs, dir string, logger *log.Logger) *Effects {
	if logger == nil {
		logger = log.Default()
	}
	return &Effects{player: player, fs: fsys, dir: dir, logger: logger}
}

// Load reads the sound files. A missing listen pulse is synthesized and
// written to dir so it can be replaced by hand. Calling Load again after a
// successful load does nothing.
func (e *Effects) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listenPulse != nil {
		return nil
	}

	path := filepath.Join(e.dir, ListenPulseFile)
	buf, err := e.readWAV(path)
	if errors.Is(err, fs.ErrNotExist) {
		buf = Tone(pulseFrequency, pulseDuration, pulseSampleRate)
		if werr := e.writeWAV(path, buf); werr != nil {
			e.logger.Warn("Could not save listen pulse", "path", path, "error", werr)
		} else {
			e.logger.Debug("Wrote default listen pulse", "path", path)
		}
		err = nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", ListenPulseFile, err)
	}

	e.listenPulse = buf
	e.logger.Debug("Sound effects loaded", "listen_pulse", buf.Duration())
	return nil
}

// PlayListenPulse plays the listening cue. Before Load it only logs.
func (e *Effects) PlayListenPulse() {
	e.mu.RLock()
	buf := e.listenPulse
	e.mu.RUnlock()

	if buf == nil {
		e.logger.Warn("PlayListenPulse called before sound effects were loaded")
		return
	}
	if err := e.player.PlayOneShot(buf); err != nil {
		e.logger.Warn("Failed to play listen pulse", "error", err)
	}
}

func (e *Effects) readWAV(path string) (*audio.Buffer, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return audio.DecodeWAV(f)
}

func (e *Effects) writeWAV(path string, buf *audio.Buffer) error {
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := e.fs.Create(path)
	if err != nil {
		return err
	}
	if err := audio.EncodeWAV(f, buf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Tone synthesizes a mono sine tone with short linear fades at both ends.
func Tone(freq float64, dur time.Duration, sampleRate int) *audio.Buffer {
	n := int(int64(dur) * int64(sampleRate) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	fade := sampleRate / 200 // 5ms
	if fade > n/2 {
		fade = n / 2
	}

	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		env := 1.0
		if fade > 0 {
			if i < fade {
				env = float64(i) / float64(fade)
			} else if i >= n-fade {
				env = float64(n-1-i) / float64(fade)
			}
		}
		v := math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * env * pulseAmplitude
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return &audio.Buffer{PCM: pcm, SampleRate: sampleRate, Channels: 1}
}
