package grpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/internal/logging"
)

const sessionMetadataKey = "corvus-session-id"

// sessionReply is Connect's response: the session id the caller must
// attach to every subsequent Dispatch call.
type sessionReply struct {
	SessionID string `json:"session_id"`
}

// Endpoint is a concrete network corvus.Endpoint[S] over gRPC. Unlike
// inproc and vsock it has no persistent per-connection state in the
// transport itself — gRPC multiplexes independent unary calls over one
// HTTP/2 connection — so session identity travels as outgoing/incoming
// metadata rather than being implied by which socket a call arrived on.
type Endpoint[S any] struct {
	Addr          string
	Contract      *corvus.Contract
	NewDispatcher func(instance S) *corvus.Dispatcher
	// Observer, if set, is attached to every Dispatcher this Endpoint
	// builds, so every dispatched call is reported to it (audit logging,
	// metrics, or both via a fan-out DispatchObserver).
	Observer corvus.DispatchObserver

	server *grpc.Server
}

// Run implements corvus.Endpoint[S].
func (e *Endpoint[S]) Run(ctx context.Context, runtime *corvus.HostRuntime[S]) error {
	lis, err := net.Listen("tcp", e.Addr)
	if err != nil {
		return fmt.Errorf("grpc: listen on %s: %w", e.Addr, err)
	}

	e.server = grpc.NewServer()
	svc := &serviceImpl[S]{endpoint: e, runtime: runtime}
	e.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "corvus.Transport",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Connect", Handler: svc.connect},
			{MethodName: "Dispatch", Handler: svc.dispatch},
		},
	}, svc)

	logging.Op().Info("grpc endpoint listening", "addr", e.Addr, "contract", e.Contract.Name)

	errCh := make(chan error, 1)
	go func() { errCh <- e.server.Serve(lis) }()

	select {
	case <-ctx.Done():
		e.server.GracefulStop()
		logging.Op().Info("grpc endpoint shutting down", "addr", e.Addr)
		return nil
	case err := <-errCh:
		return err
	}
}

type serviceImpl[S any] struct {
	endpoint *Endpoint[S]
	runtime  *corvus.HostRuntime[S]
}

func (s *serviceImpl[S]) connect(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var empty struct{}
	if err := dec(&empty); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode connect request: %v", err)
	}
	id, _, err := s.runtime.GetSession(nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "session construction: %v", err)
	}
	logging.Op().Debug("grpc session connected", "session_id", id)
	return &sessionReply{SessionID: id}, nil
}

func (s *serviceImpl[S]) dispatch(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	var req corvus.RequestEnvelope
	if err := dec(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	sessionID := sessionIDFromContext(ctx)
	_, instance, err := s.runtime.GetSession(&sessionID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "session lookup: %v", err)
	}
	dispatcher := s.endpoint.NewDispatcher(instance)
	dispatcher.Observer = s.endpoint.Observer

	value, svcErr := dispatcher.Invoke(ctx, req.Name, req.Params)
	if svcErr != nil {
		resp := corvus.NewErrResult(svcErr)
		return &resp, nil
	}
	resp := corvus.NewOkResult(value)
	return &resp, nil
}

func sessionIDFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(sessionMetadataKey)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
