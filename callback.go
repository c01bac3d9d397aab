package corvus

import "context"

// callbackSlotKey is the context.Context key for the task-scoped
// callback slot a duplex contract uses to reach back into its caller. A
// context.Context (not a goroutine-local or a package-level variable) is
// corvus's realization of task-local storage: ctx is already threaded
// through every Handler/Dispatcher call, so it is the natural carrier —
// concurrent inbound calls on the same Endpoint each get their own ctx
// and therefore their own slot, with no risk of one call observing
// another's callback the way a global or goroutine-local slot could
// under a scheduler that reuses goroutines across calls.
type callbackSlotKey struct{}

// WithCallback returns a copy of ctx carrying proxy as the callback slot's
// content. An Endpoint calls this once per inbound call on a duplex
// contract, immediately before invoking the Dispatcher, and discards the
// returned context once dispatch returns — there is no explicit "clear"
// step in Go's immutable-context model; clearing happens automatically
// because nothing outside that one dispatch call ever observes the
// derived context.
func WithCallback(ctx context.Context, proxy *Proxy) context.Context {
	return context.WithValue(ctx, callbackSlotKey{}, proxy)
}

// CallbackFromContext reads the callback slot. ok is false outside
// dispatch of a duplex call, or when dispatching a non-duplex contract —
// callers are expected to fall back to a no-op implementation of the
// callback contract when ok is false, since a contract with the unit
// callback has no real slot to read.
func CallbackFromContext(ctx context.Context) (*Proxy, bool) {
	p, ok := ctx.Value(callbackSlotKey{}).(*Proxy)
	return p, ok
}
