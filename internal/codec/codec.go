// Package codec converts relay envelopes to and from websocket frames.
package codec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCodec is returned by Lookup for unsupported codec names.
var ErrUnknownCodec = errors.New("unknown codec")

// Envelope is the outer shape of every frame: an event name and its payload.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Frame is a decoded inbound envelope whose payload is still encoded.
// The payload is decoded lazily once the event type is known.
type Frame struct {
	Type    string
	payload []byte
	decode  func([]byte, any) error
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (f *Frame) Decode(v any) error {
	if len(f.payload) == 0 || f.decode == nil {
		return nil
	}
	if err := f.decode(f.payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Type, err)
	}
	return nil
}

// Codec encodes outbound envelopes and decodes inbound frames.
type Codec interface {
	// Name is the value clients pass in the codec query parameter.
	Name() string
	// MessageType is the websocket frame type the codec writes.
	MessageType() int
	Marshal(env *Envelope) ([]byte, error)
	Unmarshal(data []byte) (*Frame, error)
}

// Lookup returns the codec registered under name. An empty name selects JSON.
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON, nil
	case NameMsgpack:
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
