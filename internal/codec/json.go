package codec

import (
	"bytes"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// NameJSON selects the text codec.
const NameJSON = "json"

// JSON is the default codec, used by browsers.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

type jsonFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (jsonCodec) Name() string { return NameJSON }

func (jsonCodec) MessageType() int { return websocket.TextMessage }

func (jsonCodec) Marshal(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (jsonCodec) Unmarshal(data []byte) (*Frame, error) {
	var raw jsonFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	payload := raw.Payload
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = nil
	}

	return &Frame{
		Type:    raw.Type,
		payload: payload,
		decode:  json.Unmarshal,
	}, nil
}
