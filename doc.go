// Package corvus is a contract-first RPC host framework: it turns a
// declared Contract into a matched Dispatcher/Proxy pair wired through
// pluggable Endpoints, with session lifecycle (Singleton vs per-session
// HostedService) and duplex callback contracts (a server-side operation
// body can reach the caller's own implementation through the CallbackSlot
// for the duration of one dispatch).
//
// The package tree:
//
//	corvus            contract model, dispatcher/proxy, forwarder, session
//	                   factory, host runtime, callback slot, service host
//	corvus/codec       the structured-value-tree codec boundary (JSON)
//	corvus/inproc      reference in-process transport (conformance target)
//	corvus/transport/grpc   a concrete network Endpoint over gRPC
//	corvus/transport/vsock  a concrete Endpoint over AF_VSOCK
//	corvus/store/redis      a Redis-backed SessionStore
//	corvus/audit/postgres   a pgx-backed DispatchObserver
//	corvus/internal/logging structured logging (slog)
//	corvus/internal/config  host configuration
//	corvus/internal/metrics Prometheus dispatch metrics
//	corvus/internal/tracing OpenTelemetry dispatch spans
//
// corvus does not generate code: a Contract's Dispatcher and Proxy are
// small hand-written adapters over the types in this package (see
// inproc/example_test.go).
package corvus
