package hub

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-roomwatch/internal/log"
)

func fakeClient(h *Hub, buf int) *Client {
	c := &Client{ID: "test", hub: h, send: make(chan Message, buf)}
	h.register <- c
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := fakeClient(h, 4)
	b := fakeClient(h, 4)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, c := range []*Client{a, b} {
		m := <-c.send
		if m.Type != JSONMessage || string(m.Data) != `{"n":1}` {
			t.Errorf("first message = %+v", m)
		}
		m = <-c.send
		if m.Type != BinaryMessage || len(m.Data) != 2 {
			t.Errorf("second message = %+v", m)
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	slow := fakeClient(h, 1)
	fast := fakeClient(h, 8)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	for i := 0; i < 3; i++ {
		h.BroadcastBinary([]byte{byte(i)})
		<-fast.send
	}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	// The slow client's channel is closed after the buffered message.
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow client channel should be closed")
	}
}

func TestHub_Unregister(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := fakeClient(h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("unregistered client channel should be closed")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := fakeClient(h, 1)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after stop", h.ClientCount())
	}
}

func TestHub_BroadcastWithoutClientsIsNoop(t *testing.T) {
	h := New("test", log.Discard())
	for i := 0; i < 1000; i++ {
		h.BroadcastBinary([]byte{1})
	}
	if h.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", h.Dropped())
	}
}
