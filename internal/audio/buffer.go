package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

// bytesPerSample is fixed: every Buffer holds signed 16-bit little-endian PCM.
const bytesPerSample = 2

// ErrEmptyBuffer is returned when decoded audio contains no samples.
var ErrEmptyBuffer = errors.New("audio buffer is empty")

// Buffer is decoded audio ready for playback.
type Buffer struct {
	PCM        []byte // interleaved s16le
	SampleRate int
	Channels   int
}

// NewBuffer wraps pcm. A trailing partial frame is dropped.
func NewBuffer(pcm []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	frame := channels * bytesPerSample
	pcm = pcm[:len(pcm)-len(pcm)%frame]
	if len(pcm) == 0 {
		return nil, ErrEmptyBuffer
	}
	return &Buffer{PCM: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

func (b *Buffer) frameSize() int {
	return b.Channels * bytesPerSample
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.PCM) / b.frameSize()
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DurationMillis returns the playback length truncated to whole milliseconds.
func (b *Buffer) DurationMillis() int64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return int64(b.Frames()) * 1000 / int64(b.SampleRate)
}

// Slice returns the PCM bytes for [start, start+dur), clamped to the buffer.
// The returned slice shares memory with the buffer.
func (b *Buffer) Slice(start, dur time.Duration) []byte {
	from := b.byteOffset(start)
	to := b.byteOffset(start + dur)
	if to < from {
		to = from
	}
	return b.PCM[from:to]
}

func (b *Buffer) byteOffset(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	frame := int64(d) * int64(b.SampleRate) / int64(time.Second)
	if n := int64(b.Frames()); frame > n {
		frame = n
	}
	return int(frame) * b.frameSize()
}

// IntBuffer converts the buffer to a go-audio IntBuffer.
func (b *Buffer) IntBuffer() *goaudio.IntBuffer {
	n := len(b.PCM) / bytesPerSample
	data := make([]int, n)
	for i := 0; i < n; i++ {
		data[i] = int(int16(binary.LittleEndian.Uint16(b.PCM[i*bytesPerSample:])))
	}
	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: b.Channels,
			SampleRate:  b.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// FromIntBuffer converts a go-audio IntBuffer of any common bit depth to a
// 16-bit Buffer.
func FromIntBuffer(ib *goaudio.IntBuffer) (*Buffer, error) {
	if ib == nil || ib.Format == nil {
		return nil, errors.New("int buffer has no format")
	}
	depth := ib.SourceBitDepth
	if depth == 0 {
		depth = 16
	}

	pcm := make([]byte, len(ib.Data)*bytesPerSample)
	for i, v := range ib.Data {
		var s int
		switch {
		case depth == 8:
			// 8-bit WAV samples are unsigned
			s = (v - 128) << 8
		case depth > 16:
			s = v >> (depth - 16)
		default:
			s = v << (16 - depth)
		}
		binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(int16(clamp16(s))))
	}
	return NewBuffer(pcm, ib.Format.SampleRate, ib.Format.NumChannels)
}

// Conform returns a copy of the buffer converted to the given sample rate and
// channel count. Channels are mixed down by averaging or duplicated up, and
// the rate is changed by nearest-frame resampling, which is adequate for the
// short cue sounds this is used on.
func (b *Buffer) Conform(sampleRate, channels int) (*Buffer, error) {
	if b.SampleRate == sampleRate && b.Channels == channels {
		return b, nil
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid target format %d Hz / %d ch", sampleRate, channels)
	}

	src := b.IntBuffer().Data
	inFrames := b.Frames()
	outFrames := int(int64(inFrames) * int64(sampleRate) / int64(b.SampleRate))
	pcm := make([]byte, outFrames*channels*bytesPerSample)

	for f := 0; f < outFrames; f++ {
		in := int(int64(f) * int64(b.SampleRate) / int64(sampleRate))
		if in >= inFrames {
			in = inFrames - 1
		}
		frame := src[in*b.Channels : (in+1)*b.Channels]

		for c := 0; c < channels; c++ {
			var s int
			if channels == b.Channels {
				s = frame[c]
			} else if channels < b.Channels {
				for _, v := range frame {
					s += v
				}
				s /= len(frame)
			} else {
				s = frame[c%b.Channels]
			}
			off := (f*channels + c) * bytesPerSample
			binary.LittleEndian.PutUint16(pcm[off:], uint16(int16(clamp16(s))))
		}
	}
	return NewBuffer(pcm, sampleRate, channels)
}

func clamp16(v int) int {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
