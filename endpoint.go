package corvus

import "context"

// Endpoint is a transport-specific listener plug-in. An Endpoint
// receives connection intents, asks the runtime for a session,
// drains inbound requests, invokes the Dispatcher, and writes responses.
// For duplex contracts it also wraps an outbound Forwarder back to the
// client in a callback Proxy and installs it in the CallbackSlot (see
// WithCallback) for each dispatch.
//
// S is the Go interface type implementing the Contract this Endpoint
// serves (the same S a ServiceHost[S]/HostRuntime[S] is parameterized
// over).
type Endpoint[S any] interface {
	// Run publishes the endpoint's listen address/name, accepts
	// connections, and drains requests until ctx is canceled or the
	// transport closes. It returns nil on a clean shutdown and a non-nil
	// error on any transport failure, which aborts the whole Host —
	// ServiceHost.Run propagates the first endpoint error.
	Run(ctx context.Context, runtime *HostRuntime[S]) error
}
