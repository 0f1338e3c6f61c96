package store

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is the default artifact codec. It round-trips the untyped payload
// mappings the engine passes around without a schema.
type Msgpack struct{}

// Marshal implements Codec.
func (Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal implements Codec.
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
