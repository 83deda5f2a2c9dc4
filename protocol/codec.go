package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// envelope is the adjacently tagged form used by the server: the variant
// name in "ty" and its body in "payload".
type envelope struct {
	Ty      string          `json:"ty"`
	Payload json.RawMessage `json:"payload"`
}

var jsonNull = []byte("null")

// Decode parses one inbound text frame. Fields the server omits decode to
// their zero value.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, malformed(err)
	}
	if env.Ty == "" {
		return Message{}, malformed(errors.New("missing message tag"))
	}

	switch MessageType(env.Ty) {
	case MessageEntities:
		if isNull(env.Payload) {
			return Message{}, malformed(errors.New("entities message without payload"))
		}
		var pl EntitiesPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return Message{}, malformed(fmt.Errorf("entities payload: %w", err))
		}
		return Message{Type: MessageEntities, Entities: &pl}, nil

	case MessageTerrain:
		if isNull(env.Payload) {
			return Message{Type: MessageTerrain}, nil
		}
		var pl TerrainPayload
		if err := json.Unmarshal(env.Payload, &pl); err != nil {
			return Message{}, malformed(fmt.Errorf("terrain payload: %w", err))
		}
		return Message{Type: MessageTerrain, Terrain: &pl}, nil

	default:
		return Message{}, &DecodeError{Kind: KindUnknownTag, Tag: env.Ty}
	}
}

// Encode is the inverse of Decode. The dev server uses it to produce the
// frames the client consumes.
func Encode(msg Message) ([]byte, error) {
	var payload any
	switch msg.Type {
	case MessageEntities:
		if msg.Entities == nil {
			return nil, fmt.Errorf("encode: entities message without payload")
		}
		payload = msg.Entities
	case MessageTerrain:
		if msg.Terrain != nil {
			payload = msg.Terrain
		}
	default:
		return nil, fmt.Errorf("encode: unknown message type %q", msg.Type)
	}
	return json.Marshal(struct {
		Ty      MessageType `json:"ty"`
		Payload any         `json:"payload"`
	}{msg.Type, payload})
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}
