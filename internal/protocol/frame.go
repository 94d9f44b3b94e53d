package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is a single wire message. Event frames carry Event and Data, and an
// ID when the sender expects an acknowledgement. Acknowledgement frames
// carry Ack (the ID being answered) and Data.
type Frame struct {
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	ID    uint64          `json:"id,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
}

// IsAck reports whether the frame answers an earlier request.
func (f Frame) IsAck() bool {
	return f.Ack != 0 && f.Event == ""
}

// Encode builds an event frame. A zero id means no acknowledgement is wanted.
func Encode(event string, payload any, id uint64) ([]byte, error) {
	data, err := marshalData(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data, ID: id})
}

// EncodeAck builds an acknowledgement frame for request id.
func EncodeAck(id uint64, payload any) ([]byte, error) {
	data, err := marshalData(payload)
	if err != nil {
		return nil, fmt.Errorf("encode ack %d: %w", id, err)
	}
	return json.Marshal(Frame{Ack: id, Data: data})
}

// Decode parses a frame.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" && f.Ack == 0 {
		return Frame{}, fmt.Errorf("decode frame: missing event and ack")
	}
	return f, nil
}

func marshalData(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(p)
	}
}
