package protocol

import (
	"bytes"
	"encoding/gob"
)

// MessageType tags an Envelope so a receiver can decode its Payload into
// the right concrete message type.
type MessageType int

const (
	TypeHello MessageType = iota
	TypeClusterConfig
	TypeIndex
	TypeIndexUpdate
	TypeRequest
	TypeResponse
	TypeDownloadProgress
	TypePing
	TypeClose
)

// Envelope is the placeholder wire frame. Real BEP framing — length
// prefixing, lz4 compression, the protobuf/XDR schema itself — is out
// of scope beyond the semantic fields; this pair exists only so netctrl
// and its tests can round-trip the structs in this package. The `//
// max:N` field comments on FileInfo/BlockInfo are kept as documentation
// of the wire limits a real XDR codec would enforce, in the style of
// calmh/xdr's generated structs, even though no such codec runs here.
type Envelope struct {
	Type    MessageType
	Payload []byte
}

// Marshal gob-encodes msg and wraps it in an Envelope tagged tp.
func Marshal(tp MessageType, msg interface{}) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(msg); err != nil {
		return nil, err
	}
	var framed bytes.Buffer
	if err := gob.NewEncoder(&framed).Encode(Envelope{Type: tp, Payload: payload.Bytes()}); err != nil {
		return nil, err
	}
	return framed.Bytes(), nil
}

// UnmarshalEnvelope decodes the outer frame; the caller then switches on
// Type and calls UnmarshalPayload with the matching concrete type.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env)
	return env, err
}

// UnmarshalPayload decodes env's payload into out, which must be a
// pointer to the message type matching env.Type.
func UnmarshalPayload(env Envelope, out interface{}) error {
	return gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(out)
}
