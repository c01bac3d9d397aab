package grpc

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/oriys/corvus"
)

// ClientConn is a connected gRPC session: a Proxy bound to addr plus the
// session id minted by the server's Connect method.
type ClientConn struct {
	Proxy     *corvus.Proxy
	SessionID string
	conn      *grpc.ClientConn
}

// Connect dials addr and performs the Connect handshake, returning a
// ClientConn whose Proxy is ready to call contract's operations.
func Connect(ctx context.Context, addr string, contract *corvus.Contract) (*ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc: dial %s: %w", addr, err)
	}

	var reply sessionReply
	var empty struct{}
	if err := conn.Invoke(ctx, "/corvus.Transport/Connect", &empty, &reply, grpc.CallContentSubtype(codecName)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("grpc: connect: %w", err)
	}

	fwd := &Forwarder{conn: conn, sessionID: reply.SessionID}
	proxy := corvus.NewProxy(fwd, contract, reply.SessionID)
	return &ClientConn{Proxy: proxy, SessionID: reply.SessionID, conn: conn}, nil
}

// Close releases the ClientConn's Proxy and underlying connection.
func (c *ClientConn) Close() error {
	proxyErr := c.Proxy.Close()
	if connErr := c.conn.Close(); connErr != nil {
		return connErr
	}
	return proxyErr
}

// Forwarder implements corvus.Forwarder over one gRPC channel, attaching
// the session id minted by Connect as outgoing metadata on every call.
type Forwarder struct {
	mu        sync.Mutex
	conn      *grpc.ClientConn
	sessionID string
	closed    bool
}

// Forward implements corvus.Forwarder.
func (f *Forwarder) Forward(ctx context.Context, opName string, params []byte) ([]byte, *corvus.ServiceError) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, corvus.ErrClosed
	}

	ctx = metadata.AppendToOutgoingContext(ctx, sessionMetadataKey, f.sessionID)
	req := corvus.RequestEnvelope{Name: opName, Params: params}
	var resp corvus.ResponseEnvelope
	if err := f.conn.Invoke(ctx, "/corvus.Transport/Dispatch", &req, &resp, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, corvus.ErrTransport(err)
	}
	if resp.Result.Err != nil {
		return nil, corvus.FromWire(resp.Result.Err)
	}
	return resp.Result.Value, nil
}

// Close implements corvus.Forwarder. It only marks the Forwarder closed;
// the underlying *grpc.ClientConn is owned and closed by ClientConn.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return corvus.ErrClosed
	}
	f.closed = true
	return nil
}
