package core

import (
	"errors"
	"io"
	"testing"
	"time"
)

// TestPortPair_RoundTrip tests the in-process transport
// Main test items:
// 1. Frames posted on one end arrive on the other in post order
// 2. Frames posted before OnMessage are buffered, not lost
func TestPortPair_RoundTrip(t *testing.T) {
	a, b := PortPair()

	// Post before the sink exists; the transport must hold the frames.
	a.Post(EventFrame("u", "one", 1), nil)
	a.Post(EventFrame("u", "two", 2), nil)

	got := make(chan Frame, 2)
	b.OnMessage(func(f Frame) { got <- f })

	for _, want := range []string{"one", "two"} {
		select {
		case f := <-got:
			if f.Event != want {
				t.Errorf("Expected event %q, got %q", want, f.Event)
			}
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

// TestPortPair_PeerClose tests crash observation
// Main test items:
// 1. The surviving end's error handler fires once when the peer closes
// 2. Frames buffered before the close are still delivered first
// 3. Posting after either close returns ErrPortClosed
func TestPortPair_PeerClose(t *testing.T) {
	a, b := PortPair()

	errs := make(chan error, 2)
	got := make(chan Frame, 2)
	a.OnError(func(err error) { errs <- err })
	a.OnMessage(func(f Frame) { got <- f })

	b.Post(EventFrame("u", "last", nil), nil)
	b.Close()

	select {
	case f := <-got:
		if f.Event != "last" {
			t.Errorf("Expected the buffered frame, got %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("buffered frame lost on peer close")
	}

	select {
	case err := <-errs:
		if err.Error() != "worker port closed" {
			t.Errorf("Unexpected transport error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("error handler never fired")
	}

	select {
	case err := <-errs:
		t.Errorf("Error handler fired twice: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := a.Post(EventFrame("u", "dead", nil), nil); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Expected ErrPortClosed, got %v", err)
	}
	if err := b.Post(EventFrame("u", "dead", nil), nil); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Expected ErrPortClosed on the closed end, got %v", err)
	}
}

// TestPortPair_LocalCloseSilent tests deliberate teardown
// Main test items:
// 1. Closing our own end does not fire our error handler
func TestPortPair_LocalCloseSilent(t *testing.T) {
	a, _ := PortPair()

	errs := make(chan error, 1)
	a.OnError(func(err error) { errs <- err })
	a.OnMessage(func(f Frame) {})
	a.Close()

	select {
	case err := <-errs:
		t.Errorf("Error handler fired on local close: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeMessenger is a Messenger over a plain channel, standing in for a
// transport that only offers blocking send/receive.
type fakeMessenger struct {
	frames chan Frame
	closed chan struct{}
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{frames: make(chan Frame, 8), closed: make(chan struct{})}
}

func (m *fakeMessenger) Send(f Frame) error {
	select {
	case m.frames <- f:
		return nil
	case <-m.closed:
		return io.ErrClosedPipe
	}
}

func (m *fakeMessenger) Recv() (Frame, error) {
	select {
	case f := <-m.frames:
		return f, nil
	case <-m.closed:
		return Frame{}, io.ErrClosedPipe
	}
}

func (m *fakeMessenger) Close() error {
	close(m.closed)
	return nil
}

// TestAsPort_Probing tests transport shape selection
// Main test items:
// 1. A native Port passes through unchanged
// 2. A Messenger is wrapped and pumps frames to the handler
// 3. Unknown shapes are rejected
func TestAsPort_Probing(t *testing.T) {
	native, _ := PortPair()
	port, err := AsPort(native)
	if err != nil {
		t.Fatalf("AsPort(Port) failed: %v", err)
	}
	if port != Port(native) {
		t.Error("Expected the native port back unchanged")
	}

	m := newFakeMessenger()
	wrapped, err := AsPort(m)
	if err != nil {
		t.Fatalf("AsPort(Messenger) failed: %v", err)
	}

	got := make(chan Frame, 1)
	wrapped.OnMessage(func(f Frame) { got <- f })
	// This loopback messenger receives its own sends.
	wrapped.Post(EventFrame("u", "ping", nil), nil)

	select {
	case f := <-got:
		if f.Event != "ping" {
			t.Errorf("Unexpected frame: %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("messenger pump never delivered")
	}

	if _, err := AsPort(42); err == nil {
		t.Error("Expected unsupported transports to be rejected")
	}
}

// TestMessengerPort_ErrorNormalisation tests failure reporting
// Main test items:
// 1. A Recv failure reaches the error handler normalised to a message
func TestMessengerPort_ErrorNormalisation(t *testing.T) {
	m := newFakeMessenger()
	port, err := AsPort(m)
	if err != nil {
		t.Fatalf("AsPort failed: %v", err)
	}

	errs := make(chan error, 1)
	port.OnError(func(err error) { errs <- err })
	port.OnMessage(func(f Frame) {})

	// Fail the transport out from under the pump.
	close(m.closed)

	select {
	case err := <-errs:
		var info *ErrorInfo
		if !errors.As(err, &info) {
			t.Fatalf("Expected a normalised ErrorInfo, got %T", err)
		}
		if info.Message == "" {
			t.Error("Expected a non-empty message")
		}
	case <-time.After(time.Second):
		t.Fatal("error handler never fired")
	}
}
