// Package xgrpc serves the exchange operations over grpc.
//
// Messages are plain Go structs carried by a json codec, clients select it with
// grpc.CallContentSubtype(xgrpc.CodecName) or use the Client in this package.
package xgrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
