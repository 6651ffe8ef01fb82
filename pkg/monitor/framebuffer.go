package monitor

import (
	"context"
	"sync"
	"time"
)

// Frame is one encoded, annotated frame.
type Frame struct {
	Data []byte // JPEG
	Seq  uint64 // increases by one per Publish, starting at 1
	At   time.Time
}

// FrameBuffer holds the latest encoded frame for any number of readers.
// Readers that fall behind skip to the newest frame; there is no backlog.
type FrameBuffer struct {
	mu     sync.Mutex
	latest Frame
	ready  chan struct{}
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{ready: make(chan struct{})}
}

// Publish replaces the latest frame and wakes waiting readers.
// data must not be modified afterwards.
func (b *FrameBuffer) Publish(data []byte, at time.Time) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = Frame{Data: data, Seq: b.latest.Seq + 1, At: at}
	close(b.ready)
	b.ready = make(chan struct{})
	return b.latest.Seq
}

// Latest returns the newest frame, if any was published.
func (b *FrameBuffer) Latest() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.latest.Seq > 0
}

// Next waits for a frame newer than after.
func (b *FrameBuffer) Next(ctx context.Context, after uint64) (Frame, error) {
	for {
		b.mu.Lock()
		if b.latest.Seq > after {
			f := b.latest
			b.mu.Unlock()
			return f, nil
		}
		ready := b.ready
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-ready:
		}
	}
}
