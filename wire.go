package corvus

import "encoding/json"

// RequestEnvelope is the conformance wire format every transport in this
// repository serializes: an operation name, its encoded argument
// product, and an optional logical service selector for transports that
// multiplex multiple contracts over one connection.
type RequestEnvelope struct {
	Name     string          `json:"name"`
	Params   json.RawMessage `json:"params"`
	Endpoint string          `json:"endpoint,omitempty"`
}

// ResponseEnvelope carries either the encoded return value or a
// ServiceError, never both.
type ResponseEnvelope struct {
	Result ResultUnion `json:"result"`
}

// ResultUnion is the tagged union `Ok(value) | Err(ServiceError)`.
// Exactly one of Value/Err is populated.
type ResultUnion struct {
	Value json.RawMessage `json:"value,omitempty"`
	Err   *WireError      `json:"error,omitempty"`
}

// WireError is the on-the-wire projection of a ServiceError: just enough
// to reconstruct an equivalent error on the receiving side, never the
// Cause chain (that only ever exists on the side that produced it).
type WireError struct {
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
}

// ToWire projects a ServiceError onto its wire representation.
func (e *ServiceError) ToWire() *WireError {
	return &WireError{Kind: e.Kind.String(), Msg: e.Msg}
}

// FromWire reconstructs a ServiceError from its wire representation. The
// Kind is matched against the known taxonomy by name; anything unrecognized
// (e.g. a future framework version's new kind) maps to KindTransport so
// callers still see a non-nil, inspectable error.
func FromWire(w *WireError) *ServiceError {
	if w == nil {
		return nil
	}
	kinds := map[string]Kind{
		KindBadItem.String():      KindBadItem,
		KindBadArgument.String():  KindBadArgument,
		KindBadOperation.String(): KindBadOperation,
		KindDecode.String():       KindDecode,
		KindEncode.String():       KindEncode,
		KindUser.String():         KindUser,
		KindTransport.String():    KindTransport,
		KindClosed.String():       KindClosed,
	}
	kind, ok := kinds[w.Kind]
	if !ok {
		kind = KindTransport
	}
	return NewServiceError(kind, "%s", w.Msg)
}

// NewOkResult builds a ResponseEnvelope carrying a successful return value.
func NewOkResult(value json.RawMessage) ResponseEnvelope {
	return ResponseEnvelope{Result: ResultUnion{Value: value}}
}

// NewErrResult builds a ResponseEnvelope carrying a ServiceError.
func NewErrResult(err *ServiceError) ResponseEnvelope {
	return ResponseEnvelope{Result: ResultUnion{Err: err.ToWire()}}
}
