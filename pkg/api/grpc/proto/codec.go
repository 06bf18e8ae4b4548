package proto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

func init() {
	// Registering here, not in pkg/api/grpc, guarantees the codec is known
	// to whichever side of the connection (server or REST-gateway client)
	// a given process links in, since both import this package directly.
	encoding.RegisterCodec(JSONCodec{})
}

// JSONCodec implements google.golang.org/grpc/encoding.Codec for the plain
// Go message structs this package defines (see the package doc for why:
// no protoc in this environment to produce a real protobuf wire codec).
// It is registered under the name "json": a client selects it per call with
// grpc.CallContentSubtype("json"), and the server picks the registered codec
// matching the request's content-subtype.
type JSONCodec struct{}

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return "json"
}
