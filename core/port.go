package core

import (
	"fmt"
	"sync"
)

// =============================================================================
// Port: Uniform transport surface held by both sides of the protocol
// =============================================================================

// Port is the uniform duplex surface the scheduler and the dispatcher hold.
// Exactly one message handler and one error handler may be registered;
// frames delivered before OnMessage is called are buffered by the
// transport. Transport failures are normalised to ErrorInfo before they
// reach the error handler.
type Port interface {
	// Post sends one frame to the peer, together with the transferables
	// discovered in its payload.
	Post(f Frame, transfers []Transferable) error

	// OnMessage registers the inbound frame sink and starts delivery.
	OnMessage(fn func(Frame))

	// OnError registers the sink for transport failures. The handler fires
	// at most once.
	OnError(fn func(error))

	// Close tears the port down. Posting on a closed port returns
	// ErrPortClosed; the peer observes the closure as a transport failure.
	Close() error
}

// Messenger is the narrower transport shape: a blocking send/receive pair
// with no handler registration. AsPort adapts a Messenger into a Port by
// running a receive pump.
type Messenger interface {
	// Send delivers one frame to the peer.
	Send(f Frame) error

	// Recv blocks for the next inbound frame. It returns an error once the
	// underlying transport is gone.
	Recv() (Frame, error)
}

// AsPort adapts a transport value into a Port. Two shapes are recognised:
// a native Port is returned as-is, and a Messenger is wrapped with a pump
// goroutine. Anything else is rejected.
func AsPort(transport any) (Port, error) {
	switch t := transport.(type) {
	case Port:
		return t, nil
	case Messenger:
		return newMessengerPort(t), nil
	default:
		return nil, fmt.Errorf("unsupported transport %T", transport)
	}
}

// =============================================================================
// ChannelPort: In-process transport over a pair of buffered channels
// =============================================================================

// portBufferSize is the per-direction frame buffer of a channel pair.
const portBufferSize = 64

// ChannelPort is the in-process transport: one end of a linked pair of
// buffered frame channels. It backs goroutine workers and is itself
// transferable, playing the message-port role in argument graphs.
type ChannelPort struct {
	out chan Frame
	in  chan Frame

	closed     chan struct{}
	peerClosed chan struct{}
	closeOnce  sync.Once

	mu        sync.Mutex
	onMessage func(Frame)
	onError   func(error)
	errored   bool
	pumping   bool
}

// TransferMarker marks ChannelPort as transferable.
func (p *ChannelPort) TransferMarker() {}

// PortPair creates two linked channel ports. Frames posted on one end are
// delivered to the other end's message handler in post order.
func PortPair() (*ChannelPort, *ChannelPort) {
	ab := make(chan Frame, portBufferSize)
	ba := make(chan Frame, portBufferSize)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})

	a := &ChannelPort{out: ab, in: ba, closed: aClosed, peerClosed: bClosed}
	b := &ChannelPort{out: ba, in: ab, closed: bClosed, peerClosed: aClosed}
	return a, b
}

// Post sends one frame to the peer. The transfer list is advisory for this
// transport: both ends share the same address space, so nothing is copied
// and nothing is detached.
func (p *ChannelPort) Post(f Frame, transfers []Transferable) error {
	select {
	case <-p.closed:
		return ErrPortClosed
	case <-p.peerClosed:
		return ErrPortClosed
	default:
	}

	select {
	case p.out <- f:
		return nil
	case <-p.closed:
		return ErrPortClosed
	case <-p.peerClosed:
		return ErrPortClosed
	}
}

// OnMessage registers the frame sink and starts the delivery pump. Frames
// posted by the peer before registration are buffered and delivered once
// the pump starts.
func (p *ChannelPort) OnMessage(fn func(Frame)) {
	p.mu.Lock()
	p.onMessage = fn
	start := !p.pumping
	p.pumping = true
	p.mu.Unlock()

	if start {
		go p.pump()
	}
}

// OnError registers the transport failure sink.
func (p *ChannelPort) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

// Close tears down this end of the pair. The peer observes a transport
// failure unless it closed first.
func (p *ChannelPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	return nil
}

// pump delivers inbound frames to the registered handler until either end
// closes. When the peer closes, buffered frames are drained before the
// error handler fires.
func (p *ChannelPort) pump() {
	for {
		select {
		case f := <-p.in:
			p.deliver(f)
		case <-p.closed:
			return
		case <-p.peerClosed:
			p.drainBuffered()
			p.fireError(&ErrorInfo{Message: "worker port closed"})
			return
		}
	}
}

// drainBuffered flushes frames buffered before the peer closed.
func (p *ChannelPort) drainBuffered() {
	for {
		select {
		case f := <-p.in:
			p.deliver(f)
		default:
			return
		}
	}
}

func (p *ChannelPort) deliver(f Frame) {
	p.mu.Lock()
	fn := p.onMessage
	p.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func (p *ChannelPort) fireError(err error) {
	select {
	case <-p.closed:
		// This end closed deliberately; nothing to report.
		return
	default:
	}

	p.mu.Lock()
	fn := p.onError
	fired := p.errored
	p.errored = true
	p.mu.Unlock()
	if fn != nil && !fired {
		fn(err)
	}
}

// =============================================================================
// messengerPort: Pump-backed adapter for the Messenger shape
// =============================================================================

type messengerPort struct {
	transport Messenger

	mu        sync.Mutex
	onMessage func(Frame)
	onError   func(error)
	errored   bool
	pumping   bool

	closed    chan struct{}
	closeOnce sync.Once
}

func newMessengerPort(m Messenger) *messengerPort {
	return &messengerPort{transport: m, closed: make(chan struct{})}
}

func (p *messengerPort) Post(f Frame, transfers []Transferable) error {
	select {
	case <-p.closed:
		return ErrPortClosed
	default:
	}
	return p.transport.Send(f)
}

func (p *messengerPort) OnMessage(fn func(Frame)) {
	p.mu.Lock()
	p.onMessage = fn
	start := !p.pumping
	p.pumping = true
	p.mu.Unlock()

	if start {
		go p.pump()
	}
}

func (p *messengerPort) OnError(fn func(error)) {
	p.mu.Lock()
	p.onError = fn
	p.mu.Unlock()
}

func (p *messengerPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	if closer, ok := p.transport.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (p *messengerPort) pump() {
	for {
		f, err := p.transport.Recv()
		if err != nil {
			select {
			case <-p.closed:
			default:
				p.fireOnce(NormalizeError(err))
			}
			return
		}

		select {
		case <-p.closed:
			return
		default:
		}

		p.mu.Lock()
		fn := p.onMessage
		p.mu.Unlock()
		if fn != nil {
			fn(f)
		}
	}
}

func (p *messengerPort) fireOnce(err error) {
	p.mu.Lock()
	fn := p.onError
	fired := p.errored
	p.errored = true
	p.mu.Unlock()
	if fn != nil && !fired {
		fn(err)
	}
}
