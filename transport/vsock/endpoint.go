package vsock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	mdvsock "github.com/mdlayher/vsock"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/internal/logging"
)

// Endpoint listens on an AF_VSOCK port and serves one Dispatcher per
// accepted connection. Unlike inproc, each connection here is strictly
// request-then-response — no duplex callback support — matching how a
// hypervisor/guest agent typically uses vsock purely as a host<->guest
// request channel.
type Endpoint[S any] struct {
	// Port is the vsock port to listen on. ContextID is implied by
	// mdlayher/vsock.Listen: the kernel binds to VMADDR_CID_ANY.
	Port          uint32
	Contract      *corvus.Contract
	NewDispatcher func(instance S) *corvus.Dispatcher
	// Observer, if set, is attached to every Dispatcher this Endpoint
	// builds, so every dispatched call is reported to it.
	Observer corvus.DispatchObserver
}

// Run implements corvus.Endpoint[S].
func (e *Endpoint[S]) Run(ctx context.Context, runtime *corvus.HostRuntime[S]) error {
	lis, err := mdvsock.Listen(e.Port, nil)
	if err != nil {
		return fmt.Errorf("vsock: listen on port %d: %w", e.Port, err)
	}

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			lis.Close()
		case <-stopped:
		}
	}()
	defer close(stopped)

	logging.Op().Info("vsock endpoint listening", "port", e.Port, "contract", e.Contract.Name)

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("vsock: accept: %w", err)
			}
		}
		go e.serveConn(ctx, runtime, conn)
	}
}

func (e *Endpoint[S]) serveConn(ctx context.Context, runtime *corvus.HostRuntime[S], conn net.Conn) {
	defer conn.Close()

	sessionID, instance, err := runtime.GetSession(nil)
	if err != nil {
		logging.Op().Error("vsock session construction failed", "error", err)
		return
	}
	dispatcher := e.NewDispatcher(instance)
	dispatcher.Observer = e.Observer
	codec := newFrameCodec(conn)
	logging.Op().Debug("vsock session connected", "session_id", sessionID)

	for {
		var req corvus.RequestEnvelope
		if err := codec.receive(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Op().Debug("vsock receive failed", "session_id", sessionID, "error", err)
			}
			return
		}

		value, svcErr := dispatcher.Invoke(ctx, req.Name, req.Params)
		var resp corvus.ResponseEnvelope
		if svcErr != nil {
			resp = corvus.NewErrResult(svcErr)
		} else {
			resp = corvus.NewOkResult(value)
		}
		if err := codec.send(resp); err != nil {
			logging.Op().Debug("vsock send failed", "session_id", sessionID, "error", err)
			return
		}
	}
}
