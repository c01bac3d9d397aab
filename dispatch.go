package corvus

import (
	"context"
	"time"

	"github.com/oriys/corvus/codec"
)

// Handler is the body of one registered operation: decode the operation's
// declared arguments from dec (returning an already-tagged *ServiceError,
// normally via ErrDecode, on failure — the Dispatcher never calls the
// handler's own service implementation once decode fails), then invoke the
// concrete implementation and return its result.
//
// A plain (non-*ServiceError) error returned here is the Go-idiomatic
// escape hatch for "the user implementation signals failure through its
// own logic": Go handler bodies more naturally return `(T, error)` than
// thread a result-shaped T through every return type, so the Dispatcher
// wraps any plain error as KindUser before it reaches the wire.
type Handler func(ctx context.Context, dec *codec.Decoder) (any, error)

// DispatchObserver is notified after every Invoke, successful or not. A
// Dispatcher with no Observer set skips the call entirely — observing is
// an optional side channel (see audit/postgres), never part of the
// dispatch result itself.
type DispatchObserver interface {
	Observe(contract, operation string, failed bool, kind Kind, message string, elapsed time.Duration)
}

// MultiObserver fans one Invoke notification out to every observer it
// holds, in order, skipping nil entries. Lets an Endpoint attach both an
// audit log and a metrics collector to the same Dispatcher without
// either knowing about the other.
type MultiObserver []DispatchObserver

func (m MultiObserver) Observe(contract, operation string, failed bool, kind Kind, message string, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.Observe(contract, operation, failed, kind, message, elapsed)
		}
	}
}

// Dispatcher is the server-side artifact built per Contract: given an
// operation name and an encoded argument payload, it decodes, invokes, and
// re-encodes.
type Dispatcher struct {
	Contract *Contract
	Observer DispatchObserver
	handlers map[string]Handler
}

// NewDispatcher builds an empty Dispatcher bound to contract c. Callers
// register one Handler per declared operation via Handle.
func NewDispatcher(c *Contract) *Dispatcher {
	return &Dispatcher{Contract: c, handlers: make(map[string]Handler, len(c.Operations))}
}

// Handle registers the Handler for opName. Handle does not itself validate
// that opName is declared on the Contract — MustContract/NewContract
// already rejected a malformed descriptor at build time; an opName that
// slips through here without a matching Operation can never be reached by
// Invoke since Invoke checks the Contract first.
func (d *Dispatcher) Handle(opName string, h Handler) {
	d.handlers[opName] = h
}

// Invoke matches name against the Contract's closed operation set, decodes
// arguments, calls the registered Handler, and encodes the result.
// Unknown names and operations without a registered Handler both produce
// ErrBadOperation:
// from a caller's perspective a declared-but-unimplemented operation is
// indistinguishable from an undeclared one.
func (d *Dispatcher) Invoke(ctx context.Context, name string, params []byte) ([]byte, *ServiceError) {
	start := time.Now()
	if _, ok := d.Contract.Operation(name); !ok {
		err := ErrBadOperation(name)
		d.observe(name, err, start)
		return nil, err
	}
	h, ok := d.handlers[name]
	if !ok {
		err := ErrBadOperation(name)
		d.observe(name, err, start)
		return nil, err
	}

	dec := codec.NewDecoder(params)
	result, err := h(ctx, dec)
	if err != nil {
		se, ok := err.(*ServiceError)
		if !ok {
			se = Wrap(KindUser, err, "operation %q failed", name)
		}
		d.observe(name, se, start)
		return nil, se
	}

	enc := codec.NewEncoder()
	if err := enc.SetValue(result); err != nil {
		se := ErrEncode(name, err)
		d.observe(name, se, start)
		return nil, se
	}
	payload, err := enc.Bytes()
	if err != nil {
		se := ErrEncode(name, err)
		d.observe(name, se, start)
		return nil, se
	}
	d.observe(name, nil, start)
	return payload, nil
}

func (d *Dispatcher) observe(name string, svcErr *ServiceError, start time.Time) {
	if d.Observer == nil {
		return
	}
	elapsed := time.Since(start)
	if svcErr == nil {
		d.Observer.Observe(d.Contract.Name, name, false, KindUnknown, "", elapsed)
		return
	}
	d.Observer.Observe(d.Contract.Name, name, true, svcErr.Kind, svcErr.Msg, elapsed)
}
