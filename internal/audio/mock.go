package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockBackend implements Backend without producing sound. Ranges stay
// "playing" until Finish or StopAll is called.
type MockBackend struct {
	mu sync.Mutex

	// Buffers maps URLs to the buffer Decode returns for them.
	Buffers   map[string]*Buffer
	DecodeErr error
	PlayErr   error

	ranges   []RangeCall
	pending  []func()
	oneShots int
	stops    int
}

// RangeCall records one PlayRange invocation.
type RangeCall struct {
	Start time.Duration
	Dur   time.Duration
}

// NewMockBackend creates a mock with no registered buffers.
func NewMockBackend() *MockBackend {
	return &MockBackend{Buffers: make(map[string]*Buffer)}
}

// Decode returns the registered buffer for url.
func (m *MockBackend) Decode(ctx context.Context, url string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DecodeErr != nil {
		return nil, m.DecodeErr
	}
	buf, ok := m.Buffers[url]
	if !ok {
		return nil, fmt.Errorf("mock: no audio registered for %s", url)
	}
	return buf, nil
}

// PlayRange records the call and holds onEnded until Finish or StopAll.
func (m *MockBackend) PlayRange(_ *Buffer, start, dur time.Duration, onEnded func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.ranges = append(m.ranges, RangeCall{Start: start, Dur: dur})
	if onEnded != nil {
		m.pending = append(m.pending, onEnded)
	}
	return nil
}

// StopAll ends every playing range, firing their callbacks.
func (m *MockBackend) StopAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.stops++
	m.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// PlayOneShot counts the call.
func (m *MockBackend) PlayOneShot(*Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oneShots++
	return nil
}

// Finish simulates the oldest playing range reaching its end. It reports
// whether a range was playing.
func (m *MockBackend) Finish() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	fn := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	fn()
	return true
}

// TakePending removes and returns the held callbacks without calling them,
// so a test can deliver them late.
func (m *MockBackend) TakePending() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.pending
	m.pending = nil
	return pending
}

// Ranges returns the recorded PlayRange calls.
func (m *MockBackend) Ranges() []RangeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RangeCall(nil), m.ranges...)
}

// Playing returns the number of ranges awaiting completion.
func (m *MockBackend) Playing() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// OneShots returns how many cues were played.
func (m *MockBackend) OneShots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.oneShots
}

// Stops returns how many times StopAll was called.
func (m *MockBackend) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
