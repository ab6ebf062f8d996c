package audio

import (
	"context"
	"time"
)

// Decoder turns a lesson audio resource into a playable Buffer.
type Decoder interface {
	Decode(ctx context.Context, url string) (*Buffer, error)
}

// Player plays Buffers. onEnded passed to PlayRange fires exactly once, when
// the range finishes or is cut short by StopAll. It is called on an
// arbitrary goroutine.
type Player interface {
	PlayRange(buf *Buffer, start, dur time.Duration, onEnded func()) error
	StopAll()
	PlayOneShot(buf *Buffer) error
}

// Backend is the full audio capability a lesson player consumes.
type Backend interface {
	Decoder
	Player
}

// Combine pairs a Decoder with a Player.
func Combine(d Decoder, p Player) Backend {
	return combined{Decoder: d, Player: p}
}

type combined struct {
	Decoder
	Player
}
