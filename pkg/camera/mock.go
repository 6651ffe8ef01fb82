package camera

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockSource implements Source for testing.
// ReadFunc fills dst for each call; a nil ReadFunc reports no frame.
type MockSource struct {
	ReadFunc func(call int, dst *gocv.Mat) bool

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewStaticSource returns a MockSource that yields a copy of frame on every read.
func NewStaticSource(frame gocv.Mat) *MockSource {
	return &MockSource{
		ReadFunc: func(_ int, dst *gocv.Mat) bool {
			frame.CopyTo(dst)
			return true
		},
	}
}

// Read implements Source.
func (m *MockSource) Read(dst *gocv.Mat) bool {
	m.mu.Lock()
	call := m.calls
	m.calls++
	fn := m.ReadFunc
	closed := m.closed
	m.mu.Unlock()

	if closed || fn == nil {
		return false
	}
	return fn(call, dst)
}

// Close implements Source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Calls returns how many times Read ran.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
