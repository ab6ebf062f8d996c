package soundfx

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/erikh2000/comprendo-player/internal/audio"
)

func TestPlayBeforeLoadIsNoOp(t *testing.T) {
	backend := audio.NewMockBackend()
	fx := New(backend, afero.NewMemMapFs(), "/sounds", nil)

	fx.PlayListenPulse()
	if backend.OneShots() != 0 {
		t.Errorf("OneShots() = %d before Load, want 0", backend.OneShots())
	}
}

func TestLoadWritesDefaultPulse(t *testing.T) {
	fsys := afero.NewMemMapFs()
	backend := audio.NewMockBackend()
	fx := New(backend, fsys, "/sounds", nil)

	if err := fx.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ok, _ := afero.Exists(fsys, "/sounds/"+ListenPulseFile); !ok {
		t.Fatal("default listen pulse not written")
	}

	fx.PlayListenPulse()
	fx.PlayListenPulse()
	if backend.OneShots() != 2 {
		t.Errorf("OneShots() = %d, want 2", backend.OneShots())
	}

	// a second Effects reads the file back
	again := New(backend, fsys, "/sounds", nil)
	if err := again.Load(); err != nil {
		t.Fatalf("Load() from file error = %v", err)
	}
	if got := again.listenPulse.Duration(); got != pulseDuration {
		t.Errorf("loaded pulse duration = %v, want %v", got, pulseDuration)
	}
}

func TestLoadUsesInstalledFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tone := Tone(440, 50*time.Millisecond, 8000)
	f, err := fsys.Create("/sounds/" + ListenPulseFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := audio.EncodeWAV(f, tone); err != nil {
		t.Fatal(err)
	}
	f.Close()

	fx := New(audio.NewMockBackend(), fsys, "/sounds", nil)
	if err := fx.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fx.listenPulse.SampleRate != 8000 || fx.listenPulse.Frames() != 400 {
		t.Errorf("loaded %d Hz, %d frames; want 8000 Hz, 400 frames",
			fx.listenPulse.SampleRate, fx.listenPulse.Frames())
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/sounds/"+ListenPulseFile, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	fx := New(audio.NewMockBackend(), fsys, "/sounds", nil)
	if err := fx.Load(); !errors.Is(err, audio.ErrInvalidWAV) {
		t.Errorf("Load() error = %v, want ErrInvalidWAV", err)
	}
}

func TestTone(t *testing.T) {
	buf := Tone(880, 100*time.Millisecond, 10000)
	if buf.Frames() != 1000 || buf.Channels != 1 {
		t.Fatalf("Tone() = %d frames, %d ch; want 1000, 1", buf.Frames(), buf.Channels)
	}
	samples := buf.IntBuffer().Data
	if samples[0] != 0 {
		t.Errorf("first sample = %d, want faded in from 0", samples[0])
	}
	if samples[len(samples)-1] != 0 {
		t.Errorf("last sample = %d, want faded out to 0", samples[len(samples)-1])
	}
	peak := 0
	for _, s := range samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 10000 || peak > 14000 {
		t.Errorf("peak = %d, want about 40%% of full scale", peak)
	}
}
