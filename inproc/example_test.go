package inproc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oriys/corvus"
	"github.com/oriys/corvus/codec"
)

// The contract/dispatcher/proxy pairs below are the hand-written shims a
// real caller writes once per Contract (see doc.go) — corvus itself never
// generates them. They double as this package's conformance tests for
// the end-to-end scenarios a reference transport must support.

// --- Echo: a stateless singleton contract ---

var echoContract = corvus.MustContract("Echo",
	corvus.Operation{Name: "Echo", Args: []corvus.Argument{{Name: "msg", Type: "string"}}, Return: "string"},
)

type echoService struct{}

func (echoService) Echo(msg string) string { return msg }

func newEchoDispatcher(svc echoService) *corvus.Dispatcher {
	d := corvus.NewDispatcher(echoContract)
	d.Handle("Echo", func(ctx context.Context, dec *codec.Decoder) (any, error) {
		var msg string
		if err := dec.Field("msg", &msg); err != nil {
			return nil, corvus.ErrDecode("Echo", err)
		}
		return svc.Echo(msg), nil
	})
	return d
}

type echoProxy struct{ *corvus.Proxy }

func (p echoProxy) Echo(ctx context.Context, msg string) (string, error) {
	var result string
	err := corvus.Call(ctx, p.Proxy, "Echo", map[string]any{"msg": msg}, &result)
	return result, err
}

func TestSingletonEcho(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := &Endpoint[echoService]{
		Name:     "echo-singleton",
		Contract: echoContract,
		NewDispatcher: func(svc echoService) *corvus.Dispatcher {
			return newEchoDispatcher(svc)
		},
	}
	host := corvus.NewServiceHost[echoService](corvus.NewSingleton(echoService{})).WithEndpoint(ep)
	runHostInBackground(t, host, ctx)
	waitForRegistration(t, "echo-singleton")

	client := &Client[echoService]{Name: "echo-singleton"}
	conn, err := client.Connect(ctx, echoContract)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	proxy := echoProxy{conn.Proxy}

	for i := 0; i < 3; i++ {
		got, err := proxy.Echo(ctx, "hello")
		if err != nil {
			t.Fatalf("Echo: %v", err)
		}
		if got != "hello" {
			t.Fatalf("Echo = %q, want %q", got, "hello")
		}
	}
	if n := host.Runtime().SessionCount(); n != 1 {
		t.Fatalf("singleton session count = %d, want 1", n)
	}
}

// --- Counter: a per-session contract ---

var counterContract = corvus.MustContract("Counter",
	corvus.Operation{Name: "Increment", Return: "int"},
)

type counterService struct {
	mu    sync.Mutex
	count int
}

func (c *counterService) Increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count
}

func newCounterDispatcher(svc *counterService) *corvus.Dispatcher {
	d := corvus.NewDispatcher(counterContract)
	d.Handle("Increment", func(ctx context.Context, dec *codec.Decoder) (any, error) {
		return svc.Increment(), nil
	})
	return d
}

type counterProxy struct{ *corvus.Proxy }

func (p counterProxy) Increment(ctx context.Context) (int, error) {
	var result int
	err := corvus.Call(ctx, p.Proxy, "Increment", nil, &result)
	return result, err
}

func TestPerSessionCounterIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := &Endpoint[*counterService]{
		Name:     "counter-per-session",
		Contract: counterContract,
		NewDispatcher: func(svc *counterService) *corvus.Dispatcher {
			return newCounterDispatcher(svc)
		},
	}
	hosted := corvus.NewPerSession(func(info *corvus.SessionInfo) (*counterService, error) {
		return &counterService{}, nil
	})
	host := corvus.NewServiceHost[*counterService](hosted).
		WithSessionFactory(corvus.UUIDSessionFactory{}).
		WithEndpoint(ep)
	runHostInBackground(t, host, ctx)
	waitForRegistration(t, "counter-per-session")

	client := &Client[*counterService]{Name: "counter-per-session"}

	connA, err := client.Connect(ctx, counterContract)
	if err != nil {
		t.Fatalf("connect A: %v", err)
	}
	connB, err := client.Connect(ctx, counterContract)
	if err != nil {
		t.Fatalf("connect B: %v", err)
	}
	if connA.SessionID == connB.SessionID {
		t.Fatalf("expected distinct session ids, got %q twice", connA.SessionID)
	}

	a := counterProxy{connA.Proxy}
	b := counterProxy{connB.Proxy}

	for i := 1; i <= 3; i++ {
		got, err := a.Increment(ctx)
		if err != nil {
			t.Fatalf("A.Increment: %v", err)
		}
		if got != i {
			t.Fatalf("A.Increment = %d, want %d", got, i)
		}
	}
	got, err := b.Increment(ctx)
	if err != nil {
		t.Fatalf("B.Increment: %v", err)
	}
	if got != 1 {
		t.Fatalf("B.Increment = %d, want 1 (isolated from A)", got)
	}
	if n := host.Runtime().SessionCount(); n != 2 {
		t.Fatalf("session count = %d, want 2", n)
	}
}

// --- Greeter/Listener: a duplex callback contract ---

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

// recordingListener is the client-side implementation of the Listener
// callback contract: it just remembers every event it was notified of.
type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) Notify(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingListener) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func newListenerDispatcher(l *recordingListener) *corvus.Dispatcher {
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

type greeterProxy struct{ *corvus.Proxy }

func (p greeterProxy) Greet(ctx context.Context, name string) (string, error) {
	var result string
	err := corvus.Call(ctx, p.Proxy, "Greet", map[string]any{"name": name}, &result)
	return result, err
}

func TestDuplexCallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := &Endpoint[greeterService]{
		Name:             "greeter-duplex",
		Contract:         greeterContract,
		NewDispatcher:    newGreeterDispatcher,
		NewCallbackProxy: newGreeterCallbackProxy,
	}
	host := corvus.NewServiceHost[greeterService](corvus.NewSingleton(greeterService{})).WithEndpoint(ep)
	runHostInBackground(t, host, ctx)
	waitForRegistration(t, "greeter-duplex")

	listener := &recordingListener{}
	client := &Client[greeterService]{Name: "greeter-duplex"}
	conn, err := client.ConnectDuplex(ctx, greeterContract, newListenerDispatcher(listener))
	if err != nil {
		t.Fatalf("connect duplex: %v", err)
	}
	proxy := greeterProxy{conn.Proxy}

	got, err := proxy.Greet(ctx, "ada")
	if err != nil {
		t.Fatalf("Greet: %v", err)
	}
	if got != "hello, ada" {
		t.Fatalf("Greet = %q, want %q", got, "hello, ada")
	}

	deadline := time.Now().Add(time.Second)
	for len(listener.seen()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	events := listener.seen()
	if len(events) != 1 || events[0] != "greeted:ada" {
		t.Fatalf("listener events = %v, want [greeted:ada]", events)
	}
}

// --- Bad operation ---

func TestUnknownOperation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := &Endpoint[echoService]{
		Name:          "echo-badop",
		Contract:      echoContract,
		NewDispatcher: newEchoDispatcher,
	}
	host := corvus.NewServiceHost[echoService](corvus.NewSingleton(echoService{})).WithEndpoint(ep)
	runHostInBackground(t, host, ctx)
	waitForRegistration(t, "echo-badop")

	client := &Client[echoService]{Name: "echo-badop"}
	conn, err := client.Connect(ctx, echoContract)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	_, svcErr := conn.Proxy.Forwarder.Forward(ctx, "DoesNotExist", []byte("null"))
	if svcErr == nil {
		t.Fatal("expected an error calling an undeclared operation")
	}
	if svcErr.Kind != corvus.KindBadOperation {
		t.Fatalf("Kind = %v, want BadOperation", svcErr.Kind)
	}
}

// --- Close semantics ---

func TestForwarderCloseIsOneShot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep := &Endpoint[echoService]{
		Name:          "echo-close",
		Contract:      echoContract,
		NewDispatcher: newEchoDispatcher,
	}
	host := corvus.NewServiceHost[echoService](corvus.NewSingleton(echoService{})).WithEndpoint(ep)
	runHostInBackground(t, host, ctx)
	waitForRegistration(t, "echo-close")

	client := &Client[echoService]{Name: "echo-close"}
	conn, err := client.Connect(ctx, echoContract)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := conn.Proxy.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Proxy.Close(); err == nil {
		t.Fatal("second Close should report an error")
	}
	if _, svcErr := conn.Proxy.Forwarder.Forward(ctx, "Echo", []byte(`{"msg":"x"}`)); svcErr == nil {
		t.Fatal("Forward after Close should fail")
	} else if svcErr.Kind != corvus.KindClosed {
		t.Fatalf("Forward after Close Kind = %v, want Closed", svcErr.Kind)
	}
}

// --- test helpers ---

func runHostInBackground[S any](t *testing.T, host *corvus.ServiceHost[S], ctx context.Context) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- host.Run(ctx) }()
	t.Cleanup(func() {
		<-errCh
	})
}

func waitForRegistration(t *testing.T, name string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := lookup(name); ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("endpoint %q never registered", name)
}
