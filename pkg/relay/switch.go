package relay

import "sync"

// Switch drives a physical relay output.
type Switch interface {
	Set(on bool) error
	Close() error
}

// NopSwitch is used when no relay hardware is attached.
type NopSwitch struct{}

// Set does nothing.
func (NopSwitch) Set(bool) error { return nil }

// Close does nothing.
func (NopSwitch) Close() error { return nil }

// MockSwitch implements Switch for testing.
// SetFunc is called when non-nil; every Set is recorded either way.
type MockSwitch struct {
	SetFunc func(on bool) error

	mu     sync.Mutex
	calls  []bool
	closed bool
}

// Set records the call.
func (m *MockSwitch) Set(on bool) error {
	m.mu.Lock()
	m.calls = append(m.calls, on)
	fn := m.SetFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(on)
	}
	return nil
}

// Close marks the switch closed.
func (m *MockSwitch) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Calls returns every value passed to Set, in order.
func (m *MockSwitch) Calls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.calls...)
}

// Closed reports whether Close was called.
func (m *MockSwitch) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
