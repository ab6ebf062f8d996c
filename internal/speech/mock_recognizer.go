package speech

import "sync"

// MockRecognizer implements Recognizer for tests. Partials passed to Say are
// delivered whether or not the recognizer is muted, so tests can check that
// the session itself ignores them.
type MockRecognizer struct {
	mu sync.Mutex

	// DeferReady holds back onReady until Ready is called.
	DeferReady bool
	StartErr   error

	onReady   func()
	locale    string
	onPartial func(string)
	muted     bool
	starts    int
}

// Start records the call and reports readiness unless DeferReady is set.
func (m *MockRecognizer) Start(onReady func(), locale string) error {
	m.mu.Lock()
	if m.StartErr != nil {
		m.mu.Unlock()
		return m.StartErr
	}
	m.starts++
	m.locale = locale
	m.onReady = onReady
	deferred := m.DeferReady
	m.mu.Unlock()

	if !deferred {
		onReady()
	}
	return nil
}

// Ready fires the pending onReady callback.
func (m *MockRecognizer) Ready() {
	m.mu.Lock()
	fn := m.onReady
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Bind stores the partial callback.
func (m *MockRecognizer) Bind(onPartial, _ func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPartial = onPartial
}

func (m *MockRecognizer) Mute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = true
}

func (m *MockRecognizer) Unmute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = false
}

// Say delivers a partial transcript.
func (m *MockRecognizer) Say(text string) {
	m.mu.Lock()
	fn := m.onPartial
	m.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// Muted reports the current mute state.
func (m *MockRecognizer) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// Starts returns how many times Start succeeded.
func (m *MockRecognizer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Locale returns the locale passed to Start.
func (m *MockRecognizer) Locale() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locale
}
