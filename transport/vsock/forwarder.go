package vsock

import (
	"context"
	"fmt"
	"sync"

	mdvsock "github.com/mdlayher/vsock"

	"github.com/oriys/corvus"
)

// Forwarder implements corvus.Forwarder over one AF_VSOCK connection: a
// strictly request-then-response conversation, serialized by mu since a
// single vsock connection carries one call at a time.
type Forwarder struct {
	mu     sync.Mutex
	codec  *frameCodec
	closed bool
}

// Dial opens a vsock connection to (contextID, port) and wraps it as a
// corvus.Forwarder.
func Dial(contextID, port uint32) (*Forwarder, error) {
	conn, err := mdvsock.Dial(contextID, port, nil)
	if err != nil {
		return nil, fmt.Errorf("vsock: dial cid=%d port=%d: %w", contextID, port, err)
	}
	return &Forwarder{codec: newFrameCodec(conn)}, nil
}

// Forward implements corvus.Forwarder. ctx cancellation is best-effort:
// a vsock connection has no native per-call deadline, so an in-flight
// send/receive can only be interrupted by closing the Forwarder.
func (f *Forwarder) Forward(ctx context.Context, opName string, params []byte) ([]byte, *corvus.ServiceError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, corvus.ErrClosed
	}

	req := corvus.RequestEnvelope{Name: opName, Params: params}
	if err := f.codec.send(req); err != nil {
		return nil, corvus.ErrTransport(err)
	}

	var resp corvus.ResponseEnvelope
	if err := f.codec.receive(&resp); err != nil {
		return nil, corvus.ErrTransport(err)
	}
	if resp.Result.Err != nil {
		return nil, corvus.FromWire(resp.Result.Err)
	}
	return resp.Result.Value, nil
}

// Close implements corvus.Forwarder.
// The connection is closed before mu is taken, so a Forward blocked in
// send/receive (which holds mu) fails and releases it.
func (f *Forwarder) Close() error {
	connErr := f.codec.conn.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return corvus.ErrClosed
	}
	f.closed = true
	return connErr
}
