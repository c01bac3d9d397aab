package inproc

import (
	"context"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/internal/logging"
	"github.com/oriys/corvus/internal/metrics"
	"github.com/oriys/corvus/internal/tracing"
)

// Endpoint is the server side of the reference in-process transport. It
// implements corvus.Endpoint[S]: Run registers Name in the process-global
// registry, then for every connect intent mints a session, optionally
// binds a duplex callback proxy, and drains that connection's request
// channel until it is closed.
type Endpoint[S any] struct {
	// Name is the endpoint's address in the process-global registry —
	// what a Client looks it up by.
	Name string
	// Contract is the descriptor Dispatchers built by NewDispatcher are
	// bound to; kept for logging/diagnostics.
	Contract *corvus.Contract
	// NewDispatcher builds the per-instance Dispatcher for one session's
	// service instance. Hand-written per contract (see doc.go).
	NewDispatcher func(instance S) *corvus.Dispatcher
	// NewCallbackProxy builds a Proxy around the client's callback
	// Forwarder for a duplex contract. Nil for a non-duplex contract.
	NewCallbackProxy func(f corvus.Forwarder) *corvus.Proxy
	// Metrics, if set, receives session-count and endpoint-up gauges, and
	// is also attached to every Dispatcher as a DispatchObserver so the
	// dispatch counter/histogram fire. Nil disables metrics entirely
	// rather than writing to a discard sink.
	Metrics *metrics.Metrics
	// Observer, if set, is attached to every Dispatcher alongside Metrics
	// (audit logging, or any other DispatchObserver).
	Observer corvus.DispatchObserver
}

// dispatchObserver combines Metrics and Observer into the single
// DispatchObserver a Dispatcher accepts, skipping either that is nil.
func (e *Endpoint[S]) dispatchObserver() corvus.DispatchObserver {
	var obs corvus.MultiObserver
	if e.Metrics != nil {
		obs = append(obs, e.Metrics)
	}
	if e.Observer != nil {
		obs = append(obs, e.Observer)
	}
	switch len(obs) {
	case 0:
		return nil
	case 1:
		return obs[0]
	default:
		return obs
	}
}

// Run implements corvus.Endpoint[S].
func (e *Endpoint[S]) Run(ctx context.Context, runtime *corvus.HostRuntime[S]) error {
	connectCh := make(chan connectIntent, 16)
	if err := register(e.Name, connectCh); err != nil {
		return err
	}
	defer unregister(e.Name, connectCh)

	logging.Op().Info("inproc endpoint listening", "endpoint", e.Name, "contract", e.Contract.Name)
	if e.Metrics != nil {
		e.Metrics.SetEndpointUp(e.Name, true)
		defer e.Metrics.SetEndpointUp(e.Name, false)
	}

	for {
		select {
		case <-ctx.Done():
			logging.Op().Info("inproc endpoint shutting down", "endpoint", e.Name)
			return nil
		case intent := <-connectCh:
			go e.serveConnection(ctx, runtime, intent)
		}
	}
}

func (e *Endpoint[S]) serveConnection(ctx context.Context, runtime *corvus.HostRuntime[S], intent connectIntent) {
	sessionID, instance, err := runtime.GetSession(nil)
	if err != nil {
		logging.Op().Error("session construction failed", "endpoint", e.Name, "error", err)
		close(intent.replyCh)
		return
	}

	requestCh := make(chan requestMsg, 16)
	intent.replyCh <- connectReply{sessionID: sessionID, requestCh: requestCh}

	var callbackProxy *corvus.Proxy
	if e.NewCallbackProxy != nil && intent.clientCallbackCh != nil {
		callbackProxy = e.NewCallbackProxy(newChanForwarder(intent.clientCallbackCh))
	}

	dispatcher := e.NewDispatcher(instance)
	dispatcher.Observer = e.dispatchObserver()
	logging.Op().Debug("session connected", "endpoint", e.Name, "session_id", sessionID)
	if e.Metrics != nil {
		e.Metrics.SetSessionsActive(e.Contract.Name, runtime.SessionCount())
		defer e.Metrics.SetSessionsActive(e.Contract.Name, runtime.SessionCount())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requestCh:
			if !ok {
				logging.Op().Debug("session disconnected", "endpoint", e.Name, "session_id", sessionID)
				return
			}
			go e.dispatchOne(ctx, dispatcher, callbackProxy, sessionID, req)
		}
	}
}

func (e *Endpoint[S]) dispatchOne(ctx context.Context, dispatcher *corvus.Dispatcher, callbackProxy *corvus.Proxy, sessionID string, req requestMsg) {
	callCtx := ctx
	if callbackProxy != nil {
		callCtx = corvus.WithCallback(ctx, callbackProxy)
	}
	callCtx, span := tracing.StartDispatch(callCtx, dispatcher.Contract.Name, req.name, sessionID)

	value, svcErr := dispatcher.Invoke(callCtx, req.name, req.params)
	if svcErr != nil {
		logging.Op().Debug("dispatch failed", "endpoint", e.Name, "session_id", sessionID, "op", req.name, "error", svcErr)
		tracing.End(span, svcErr)
	} else {
		tracing.End(span, nil)
	}
	req.respCh <- responseMsg{value: value, err: svcErr}
}
