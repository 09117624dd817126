package hub

import (
	"errors"
	"sync"
	"testing"
)

type knownMatches map[string]bool

func (k knownMatches) Has(id string) bool { return k[id] }

// fakeConn records deliveries and can be told to fail sends.
type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	closed   bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeConn) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func TestRegisterUnknownMatch(t *testing.T) {
	h := New(knownMatches{})
	conn := &fakeConn{}

	if h.Register("nope", conn) {
		t.Fatal("Register succeeded for an unknown match id")
	}
	if got := h.Viewers("nope"); got != 0 {
		t.Errorf("Viewers = %d, want 0", got)
	}
}

func TestBroadcastCompleteness(t *testing.T) {
	h := New(knownMatches{"m1": true, "m2": true})

	conns := make([]*fakeConn, 5)
	for i := range conns {
		conns[i] = &fakeConn{}
		if !h.Register("m1", conns[i]) {
			t.Fatalf("Register conn %d failed", i)
		}
	}
	other := &fakeConn{}
	h.Register("m2", other)

	h.Broadcast("m1", []byte(`{"type":"update"}`))

	for i, c := range conns {
		if got := c.received(); got != 1 {
			t.Errorf("conn %d received %d frames, want exactly 1", i, got)
		}
	}
	if got := other.received(); got != 0 {
		t.Errorf("viewer of another match received %d frames, want 0", got)
	}
}

func TestBroadcastDropsFailedViewer(t *testing.T) {
	h := New(knownMatches{"m1": true})

	healthy := &fakeConn{}
	dead := &fakeConn{sendErr: errors.New("broken pipe")}
	h.Register("m1", healthy)
	h.Register("m1", dead)

	h.Broadcast("m1", []byte("a"))

	if got := healthy.received(); got != 1 {
		t.Errorf("healthy viewer received %d frames, want 1", got)
	}
	if !dead.closed {
		t.Error("failed viewer was not closed")
	}
	if got := h.Viewers("m1"); got != 1 {
		t.Errorf("Viewers = %d after drop, want 1", got)
	}

	// The dropped viewer receives nothing from this point on.
	h.Broadcast("m1", []byte("b"))
	if got := dead.received(); got != 0 {
		t.Errorf("dropped viewer received %d frames, want 0", got)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := New(knownMatches{"m1": true})
	conn := &fakeConn{}
	h.Register("m1", conn)

	h.Unregister("m1", conn)
	h.Unregister("m1", conn) // second call must be a no-op

	if got := h.Viewers("m1"); got != 0 {
		t.Errorf("Viewers = %d, want 0", got)
	}

	h.Broadcast("m1", []byte("x"))
	if got := conn.received(); got != 0 {
		t.Errorf("unregistered viewer received %d frames, want 0", got)
	}
}

func TestBroadcastToEmptyMatch(t *testing.T) {
	h := New(knownMatches{"m1": true})
	// Must not panic or block with no viewers.
	h.Broadcast("m1", []byte("x"))
}

func TestConcurrentRegisterBroadcast(t *testing.T) {
	h := New(knownMatches{"m1": true})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			conn := &fakeConn{}
			h.Register("m1", conn)
			h.Unregister("m1", conn)
		}()
		go func() {
			defer wg.Done()
			h.Broadcast("m1", []byte("x"))
		}()
	}
	wg.Wait()
}
