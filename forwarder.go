package corvus

import "context"

// Forwarder is the thin interface a Proxy uses to push an encoded request
// and obtain an encoded response asynchronously. A concrete Forwarder is
// supplied by an Endpoint's client-side connector
// (see the inproc, grpc and vsock transports); it knows nothing about any
// particular Contract.
//
// Requests on a single Forwarder are delivered to the far side in
// submission order, and responses are routed back to the originating
// Forward call — by submission order on a strictly serial transport, or by
// an explicit correlation id on a multiplexing one. Forward must be safe
// to call concurrently from multiple goroutines; ordering guarantees are a
// property of the transport, not of caller discipline.
type Forwarder interface {
	// Forward sends opName and the already-encoded argument payload, and
	// blocks (respecting ctx) until the matching response arrives. The
	// returned bytes are the Dispatcher's encoded return value; a non-nil
	// *ServiceError means the call itself failed (BadOperation, Decode,
	// Encode, UserError, or a transport failure) rather than producing a
	// return value.
	Forward(ctx context.Context, opName string, params []byte) ([]byte, *ServiceError)

	// Close releases the connection. Calling Forward after Close always
	// fails with ErrClosed. Close itself may be called exactly once; a
	// second call returns ErrClosed.
	Close() error
}
