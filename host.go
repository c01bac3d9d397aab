package corvus

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// HostState is ServiceHost's lifecycle: Configured → Running →
// Terminated(ok|err). No restart from Terminated.
type HostState int

const (
	HostConfigured HostState = iota
	HostRunning
	HostTerminated
)

func (s HostState) String() string {
	switch s {
	case HostConfigured:
		return "Configured"
	case HostRunning:
		return "Running"
	case HostTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// ServiceHost is the top-level builder: binds one HostedService, zero or
// more Endpoints, and a SessionFactory, then Run drives all endpoints
// concurrently until every one of them has shut down.
//
// golang.org/x/sync/errgroup gives "wait for all, propagate the first
// error" semantics without hand-rolling fan-in over a slice of endpoint
// goroutines.
type ServiceHost[S any] struct {
	hosted    HostedService[S]
	factory   SessionFactory
	endpoints []Endpoint[S]

	mu      sync.Mutex
	state   HostState
	runtime *HostRuntime[S]
}

// NewServiceHost starts a builder around hosted, with the default
// DefaultSessionFactory and no endpoints.
func NewServiceHost[S any](hosted HostedService[S]) *ServiceHost[S] {
	return &ServiceHost[S]{
		hosted:  hosted,
		factory: DefaultSessionFactory{},
		state:   HostConfigured,
	}
}

// WithSessionFactory replaces the default session factory. Returns the
// receiver for chaining.
func (h *ServiceHost[S]) WithSessionFactory(f SessionFactory) *ServiceHost[S] {
	h.factory = f
	return h
}

// WithEndpoint appends an Endpoint. Returns the receiver for chaining.
func (h *ServiceHost[S]) WithEndpoint(ep Endpoint[S]) *ServiceHost[S] {
	h.endpoints = append(h.endpoints, ep)
	return h
}

// State reports the current lifecycle state.
func (h *ServiceHost[S]) State() HostState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Runtime returns the HostRuntime built by Run. Nil before Run is called.
func (h *ServiceHost[S]) Runtime() *HostRuntime[S] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runtime
}

// Run builds the shared HostRuntime and drives every bound Endpoint
// concurrently via an errgroup, returning when they have all terminated.
// It resolves with the first endpoint error, if any, and transitions the
// Host to Terminated either way — there is no restart from Terminated,
// so a second call to Run always fails immediately.
func (h *ServiceHost[S]) Run(ctx context.Context) error {
	h.mu.Lock()
	if h.state != HostConfigured {
		state := h.state
		h.mu.Unlock()
		return fmt.Errorf("corvus: Run called on a %s host, expected Configured", state)
	}
	h.state = HostRunning
	h.runtime = NewHostRuntime(h.hosted, h.factory)
	runtime := h.runtime
	endpoints := h.endpoints
	h.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			return ep.Run(gctx, runtime)
		})
	}
	err := g.Wait()

	h.mu.Lock()
	h.state = HostTerminated
	h.mu.Unlock()
	return err
}
