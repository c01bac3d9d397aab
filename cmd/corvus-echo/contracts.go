package main

import (
	"context"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/codec"
)

// Greeter/Listener is the reference duplex contract pair: Greeter.Greet
// calls back into the client's Listener.Notify mid-call, exercising the
// CallbackSlot the way inproc/example_test.go's duplex scenario does.

var listenerContract = corvus.MustContract("Listener",
	corvus.Operation{Name: "Notify", Args: []corvus.Argument{{Name: "event", Type: "string"}}},
)

var greeterContract = corvus.MustContract("Greeter",
	corvus.Operation{Name: "Greet", Args: []corvus.Argument{{Name: "name", Type: "string"}}, Return: "string"},
).WithCallback(listenerContract)

type greeterService struct{}

func (greeterService) Greet(ctx context.Context, name string) string {
	if cb, ok := corvus.CallbackFromContext(ctx); ok {
		_ = corvus.Call(ctx, cb, "Notify", map[string]any{"event": "greeted:" + name}, nil)
	}
	return "hello, " + name
}

func newGreeterDispatcher(svc greeterService) *corvus.Dispatcher {
	d := corvus.NewDispatcher(greeterContract)
	d.Handle("Greet", func(ctx context.Context, dec *codec.Decoder) (any, error) {
		var name string
		if err := dec.Field("name", &name); err != nil {
			return nil, corvus.ErrDecode("Greet", err)
		}
		return svc.Greet(ctx, name), nil
	})
	return d
}

func newGreeterCallbackProxy(f corvus.Forwarder) *corvus.Proxy {
	return corvus.NewProxy(f, listenerContract, "")
}

type greeterProxy struct{ *corvus.Proxy }

func (p greeterProxy) Greet(ctx context.Context, name string) (string, error) {
	var result string
	err := corvus.Call(ctx, p.Proxy, "Greet", map[string]any{"name": name}, &result)
	return result, err
}

// loggingListener is the client-side Listener implementation the demo
// binary offers the server for the duplex callback.
type loggingListener struct {
	events chan string
}

func newLoggingListener() *loggingListener {
	return &loggingListener{events: make(chan string, 8)}
}

func (l *loggingListener) Notify(event string) {
	l.events <- event
}

func newListenerDispatcher(l *loggingListener) *corvus.Dispatcher {
	d := corvus.NewDispatcher(listenerContract)
	d.Handle("Notify", func(ctx context.Context, dec *codec.Decoder) (any, error) {
		var event string
		if err := dec.Field("event", &event); err != nil {
			return nil, corvus.ErrDecode("Notify", err)
		}
		l.Notify(event)
		return nil, nil
	})
	return d
}
