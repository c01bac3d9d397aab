// Package grpc is a concrete network corvus.Endpoint/Forwarder pair over
// gRPC (net.Listen + grpc.NewServer + graceful shutdown) carrying
// corvus's own JSON wire envelopes instead of a generated protobuf
// message: corvus contracts are declared at runtime (see contract.go),
// not compiled from a .proto file, so the codec — not the message type —
// is what plugs this package into grpc-go. A hand-written
// grpc.ServiceDesc stands in for what protoc-gen-go-grpc would otherwise
// generate, the same substitution doc.go makes for Dispatcher/Proxy.
package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec so a call
// can carry corvus.RequestEnvelope/ResponseEnvelope directly instead of a
// proto.Message. Selected per call via grpc.CallContentSubtype(codecName)
// on the client and matched automatically by grpc-go's content-subtype
// negotiation on the server once registered.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }
