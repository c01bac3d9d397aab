package inproc

import (
	"context"
	"sync"

	"github.com/oriys/corvus"
)

// chanForwarder implements corvus.Forwarder over a Go channel carrying
// requestMsg values. Requests are delivered in submission order because
// reqCh is a single channel; responses are routed back to the right
// caller because each requestMsg carries its own one-shot respCh rather
// than relying on the transport being strictly serial.
type chanForwarder struct {
	mu     sync.Mutex
	reqCh  chan requestMsg
	closed bool
}

func newChanForwarder(reqCh chan requestMsg) *chanForwarder {
	return &chanForwarder{reqCh: reqCh}
}

func (f *chanForwarder) Forward(ctx context.Context, opName string, params []byte) ([]byte, *corvus.ServiceError) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, corvus.ErrClosed
	}

	respCh := make(chan responseMsg, 1)
	msg := requestMsg{name: opName, params: params, respCh: respCh}

	select {
	case f.reqCh <- msg:
	case <-ctx.Done():
		return nil, corvus.ErrTransport(ctx.Err())
	}

	select {
	case resp := <-respCh:
		if resp.err != nil {
			return nil, resp.err
		}
		return resp.value, nil
	case <-ctx.Done():
		return nil, corvus.ErrTransport(ctx.Err())
	}
}

// Close may be called exactly once; a second call reports ErrClosed
// rather than panicking or double-closing the channel.
func (f *chanForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return corvus.ErrClosed
	}
	f.closed = true
	close(f.reqCh)
	return nil
}
