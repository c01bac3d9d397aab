package corvus

import "fmt"

// Argument describes one named, typed operation parameter. Type is a
// string tag (e.g. "int32", "string", a registered struct name) used only
// for descriptor validation and diagnostics — the actual Go type lives in
// the hand-written Dispatcher/Proxy pair for the contract.
type Argument struct {
	Name string
	Type string
}

// Operation describes one method of a Contract: a name unique within the
// contract, an ordered argument list, and a return type tag ("" means the
// unit/void return).
type Operation struct {
	Name   string
	Args   []Argument
	Return string
}

// Contract is the static descriptor for a declared interface: an ordered
// set of Operations plus an optional callback contract naming the partner
// interface the peer must implement to receive callbacks during calls.
// It is built once, usually in an init() or package-level var, and is
// never mutated afterwards.
type Contract struct {
	Name       string
	Operations []Operation
	// Callback names the partner contract for duplex calls. Nil means the
	// unit callback contract — ordinary request/response only.
	Callback *Contract

	byName map[string]Operation
}

// NewContract validates and builds a Contract descriptor. Operations with
// zero args besides the (implicit) receiver are fine, but a duplicate
// operation name or an argument with an empty name is a BadItem/BadArgument
// build-time error.
func NewContract(name string, ops ...Operation) (*Contract, error) {
	if name == "" {
		return nil, NewServiceError(KindBadItem, "contract name must not be empty")
	}
	byName := make(map[string]Operation, len(ops))
	for _, op := range ops {
		if op.Name == "" {
			return nil, NewServiceError(KindBadItem, "operation in contract %q has no name", name)
		}
		if _, dup := byName[op.Name]; dup {
			return nil, NewServiceError(KindBadItem, "contract %q declares %q more than once", name, op.Name)
		}
		seen := make(map[string]struct{}, len(op.Args))
		for _, a := range op.Args {
			if a.Name == "" {
				return nil, NewServiceError(KindBadArgument, "operation %q.%q has an unnamed argument", name, op.Name)
			}
			if _, dup := seen[a.Name]; dup {
				return nil, NewServiceError(KindBadArgument, "operation %q.%q repeats argument %q", name, op.Name, a.Name)
			}
			seen[a.Name] = struct{}{}
		}
		byName[op.Name] = op
	}
	return &Contract{Name: name, Operations: ops, byName: byName}, nil
}

// MustContract is NewContract but panics on a malformed descriptor — meant
// for package-level var initialization, where a BadItem/BadArgument error
// is a programming mistake the author should see at startup, not a
// runtime condition to recover from.
func MustContract(name string, ops ...Operation) *Contract {
	c, err := NewContract(name, ops...)
	if err != nil {
		panic(fmt.Sprintf("corvus: %v", err))
	}
	return c
}

// WithCallback returns a copy of c with Callback set to k. Used to declare
// duplex contracts without forcing callers to build the struct literal by
// hand: MustContract("Foo", ops...).WithCallback(callbackContract).
//
// k itself must be unit (k.Callback == nil): corvus supports one level of
// duplex only, a server operation reaching back into the caller's own
// implementation of k. A k that is itself duplex would need that
// implementation to accept callbacks of its own, which CallbackSlot (see
// callback.go) has no slot for. Like MustContract, WithCallback panics
// rather than returning an error — a recursive callback contract is a
// programming mistake to catch at package-init time, not a runtime
// condition.
func (c *Contract) WithCallback(k *Contract) *Contract {
	if k != nil && k.Callback != nil {
		panic(fmt.Sprintf("corvus: callback contract %q must not itself declare a callback (duplex callbacks do not nest)", k.Name))
	}
	cp := *c
	cp.Callback = k
	return &cp
}

// Operation looks up an operation by name. The bool is false for any name
// outside the contract's closed set — the caller (normally a Dispatcher)
// turns that into ErrBadOperation.
func (c *Contract) Operation(name string) (Operation, bool) {
	op, ok := c.byName[name]
	return op, ok
}

// IsDuplex reports whether the contract declares a non-unit callback.
func (c *Contract) IsDuplex() bool {
	return c.Callback != nil
}
