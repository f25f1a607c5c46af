package codec

import (
	"bytes"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// NameMsgpack selects the binary codec.
const NameMsgpack = "msgpack"

// Msgpack encodes envelopes as MessagePack in binary frames. Struct fields use
// their json tags so both codecs share one set of field names.
var Msgpack Codec = msgpackCodec{}

type msgpackCodec struct{}

type msgpackFrame struct {
	Type    string             `json:"type"`
	Payload msgpack.RawMessage `json:"payload"`
}

func (msgpackCodec) Name() string { return NameMsgpack }

func (msgpackCodec) MessageType() int { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(env *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte) (*Frame, error) {
	var raw msgpackFrame
	if err := msgpackDecode(data, &raw); err != nil {
		return nil, err
	}

	payload := []byte(raw.Payload)
	// 0xc0 is the MessagePack nil marker.
	if len(payload) == 1 && payload[0] == 0xc0 {
		payload = nil
	}

	return &Frame{
		Type:    raw.Type,
		payload: payload,
		decode:  msgpackDecode,
	}, nil
}

func msgpackDecode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
