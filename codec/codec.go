// Package codec defines the transport-agnostic serialization boundary
// between a Contract's generated Dispatcher and Proxy: a structured value
// tree plus container/primitive encoders. The concrete byte-level
// serializer is assumed external; this package ships the one reference
// implementation (JSON) that every conformance test in the repository is
// written against.
package codec

import "encoding/json"

// Encoder accumulates either a product of named argument values (built one
// field at a time by a generated Proxy method) or a single return value
// (built once by a generated Dispatcher), then renders it to bytes for the
// wire.
type Encoder struct {
	fields map[string]json.RawMessage
	value  json.RawMessage
	isProd bool
}

// NewEncoder returns an empty Encoder ready for either SetField calls
// (product mode) or a single SetValue call (scalar mode).
func NewEncoder() *Encoder {
	return &Encoder{fields: make(map[string]json.RawMessage)}
}

// SetField encodes v and stores it under name, switching the Encoder into
// product mode. Used by a Proxy method to pack an operation's arguments in
// declared order.
func (e *Encoder) SetField(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.fields[name] = raw
	e.isProd = true
	return nil
}

// SetValue encodes v as the Encoder's single scalar value. Used by a
// Dispatcher to encode an operation's return value.
func (e *Encoder) SetValue(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.value = raw
	e.isProd = false
	return nil
}

// Bytes renders the accumulated state to wire bytes. In product mode this
// is a JSON object keyed by field name; in scalar mode it is the encoded
// value itself. An Encoder that received neither SetField nor SetValue
// renders as JSON null, matching a unit return type.
func (e *Encoder) Bytes() ([]byte, error) {
	if e.isProd {
		return json.Marshal(e.fields)
	}
	if e.value == nil {
		return []byte("null"), nil
	}
	return e.value, nil
}

// Decoder parses the bytes produced by an Encoder back into named fields
// or a single scalar value. Construction never fails on malformed input —
// errors surface lazily from Field/Value, matching how a Dispatcher only
// discovers a decode failure while pulling a specific argument.
type Decoder struct {
	raw    []byte
	fields map[string]json.RawMessage
	parsed bool
	perr   error
}

// NewDecoder wraps raw wire bytes for field-by-field or whole-value
// decoding.
func NewDecoder(raw []byte) *Decoder {
	return &Decoder{raw: raw}
}

func (d *Decoder) ensureParsed() error {
	if d.parsed {
		return d.perr
	}
	d.parsed = true
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(d.raw, &fields); err != nil {
		d.perr = err
		return err
	}
	d.fields = fields
	return nil
}

// Field decodes the named field into dst, which must be a pointer. It
// returns an error both when the underlying bytes aren't a JSON object and
// when the named field is absent — an argument-count mismatch between
// caller and contract.
func (d *Decoder) Field(name string, dst any) error {
	if err := d.ensureParsed(); err != nil {
		return err
	}
	raw, ok := d.fields[name]
	if !ok {
		return &MissingFieldError{Field: name}
	}
	return json.Unmarshal(raw, dst)
}

// Value decodes the whole payload into dst as a single scalar — used to
// decode a Dispatcher's encoded return value on the Proxy side.
func (d *Decoder) Value(dst any) error {
	if len(d.raw) == 0 {
		return nil
	}
	return json.Unmarshal(d.raw, dst)
}

// MissingFieldError reports a decode attempt against a field the payload
// doesn't carry.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string {
	return "codec: missing field " + e.Field
}
