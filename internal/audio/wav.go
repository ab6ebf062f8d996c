package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// ErrInvalidWAV indicates the data is not a RIFF/WAVE file.
var ErrInvalidWAV = errors.New("not a valid WAV file")

// DecodeWAV reads a PCM WAV file into a Buffer.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	ib, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV samples: %w", err)
	}
	return FromIntBuffer(ib)
}

// EncodeWAV writes b as a 16-bit PCM WAV file.
func EncodeWAV(w io.WriteSeeker, b *Buffer) error {
	enc := wav.NewEncoder(w, b.SampleRate, 16, b.Channels, 1)
	if err := enc.Write(b.IntBuffer()); err != nil {
		return fmt.Errorf("encode WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// isWAV reports whether data starts with a RIFF/WAVE header.
func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
