package inproc

import (
	"context"
	"fmt"

	"github.com/oriys/corvus"
)

// Client is the connect-time handle a caller uses to reach an Endpoint
// registered under Name: look up the registry entry, hand over a connect
// intent, and wait for the reply handshake.
type Client[S any] struct {
	Name string
}

// ClientConn is a single connected session: a Forwarder bound to the
// server's per-connection request channel, plus the session id the
// server minted during connect.
type ClientConn struct {
	Proxy     *corvus.Proxy
	SessionID string
}

// Connect opens a non-duplex connection: a plain request/response
// Forwarder with no callback channel offered to the server.
func (c *Client[S]) Connect(ctx context.Context, contract *corvus.Contract) (*ClientConn, error) {
	return c.connect(ctx, contract, nil)
}

// ConnectDuplex opens a connection offering callbackDispatcher as the
// target of any callback the server issues through the CallbackSlot
// during a dispatch. The callback requests are served by a dedicated
// goroutine independent of the caller's own outbound Proxy calls, so a
// handler that both calls the server and is called back by it cannot
// deadlock against itself.
func (c *Client[S]) ConnectDuplex(ctx context.Context, contract *corvus.Contract, callbackDispatcher *corvus.Dispatcher) (*ClientConn, error) {
	if callbackDispatcher == nil {
		return nil, fmt.Errorf("inproc: ConnectDuplex requires a non-nil callback dispatcher")
	}
	callbackCh := make(chan requestMsg, 16)
	conn, err := c.connect(ctx, contract, callbackCh)
	if err != nil {
		return nil, err
	}
	go serveCallbacks(ctx, callbackDispatcher, callbackCh)
	return conn, nil
}

func (c *Client[S]) connect(ctx context.Context, contract *corvus.Contract, callbackCh chan requestMsg) (*ClientConn, error) {
	connectCh, ok := lookup(c.Name)
	if !ok {
		return nil, fmt.Errorf("inproc: no endpoint registered under %q", c.Name)
	}

	replyCh := make(chan connectReply, 1)
	intent := connectIntent{replyCh: replyCh, clientCallbackCh: callbackCh}

	select {
	case connectCh <- intent:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply, ok := <-replyCh:
		if !ok {
			return nil, fmt.Errorf("inproc: endpoint %q failed to establish a session", c.Name)
		}
		forwarder := newChanForwarder(reply.requestCh)
		proxy := corvus.NewProxy(forwarder, contract, reply.sessionID)
		return &ClientConn{Proxy: proxy, SessionID: reply.sessionID}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// serveCallbacks is the client's dedicated callback loop: every inbound
// callback request is dispatched serially against callbackDispatcher and
// its result sent back on the request's own respCh. Unlike the server,
// which dispatches each request of a connection on its own goroutine,
// this loop handles one callback at a time, which keeps a duplex client
// simple; nothing prevents the user's callback handler from itself
// spawning goroutines if it needs concurrency.
func serveCallbacks(ctx context.Context, dispatcher *corvus.Dispatcher, callbackCh chan requestMsg) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-callbackCh:
			if !ok {
				return
			}
			value, svcErr := dispatcher.Invoke(ctx, req.name, req.params)
			req.respCh <- responseMsg{value: value, err: svcErr}
		}
	}
}
