package corvus

import (
	"context"

	"github.com/oriys/corvus/codec"
	"github.com/oriys/corvus/internal/tracing"
)

// Proxy is the client-side object that exposes a Contract's operations
// through a Forwarder. corvus does not generate code: the contract author
// hand-writes one small concrete proxy struct per contract that embeds
// *Proxy and adds the typed methods — see inproc/example_test.go for the
// pattern.
type Proxy struct {
	Forwarder Forwarder
	Contract  *Contract
	// SessionID is the id the server handed back during connect, kept
	// here purely for diagnostics/logging; it plays no part in dispatch
	// since the Forwarder is already bound to one connection/session.
	SessionID string

	closed bool
}

// NewProxy wraps a Forwarder already connected to contract c.
func NewProxy(f Forwarder, c *Contract, sessionID string) *Proxy {
	return &Proxy{Forwarder: f, Contract: c, SessionID: sessionID}
}

// Close releases the underlying Forwarder. Safe to call at most once;
// matches the Forwarder.Close contract.
func (p *Proxy) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	return p.Forwarder.Close()
}

// Call is the body every generated proxy method delegates to: it packs
// named arguments into the wire's product encoding, forwards the request,
// and decodes the reply into dst (nil dst means a unit/void return).
//
// Call is the exact inverse of Dispatcher.Invoke's argument-decode step,
// so any codec that implements codec.Encoder/codec.Decoder plugs into
// both sides unmodified.
//
// When p is the callback proxy bound to ctx's callback slot (i.e. this
// Call is a server-side operation body forwarding into its caller's own
// implementation, not a client's top-level Proxy call), Call opens a
// child span around the forward so a callback shows up in a trace as a
// nested call rather than vanishing into the surrounding dispatch span.
func Call(ctx context.Context, p *Proxy, opName string, args map[string]any, dst any) (err error) {
	if cb, ok := CallbackFromContext(ctx); ok && cb == p {
		spanCtx, span := tracing.StartCallback(ctx, p.Contract.Name, opName)
		ctx = spanCtx
		defer func() { tracing.End(span, err) }()
	}

	enc := codec.NewEncoder()
	for name, v := range args {
		if encErr := enc.SetField(name, v); encErr != nil {
			return ErrEncode(opName, encErr)
		}
	}
	payload, encErr := enc.Bytes()
	if encErr != nil {
		return ErrEncode(opName, encErr)
	}

	respBytes, svcErr := p.Forwarder.Forward(ctx, opName, payload)
	if svcErr != nil {
		return svcErr
	}
	if dst == nil {
		return nil
	}
	dec := codec.NewDecoder(respBytes)
	if decErr := dec.Value(dst); decErr != nil {
		return ErrDecode(opName, decErr)
	}
	return nil
}
