package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CommandType tags an outbound subscription command.
type CommandType string

const (
	CommandSubscribe      CommandType = "room_id"
	CommandSubscribeMany  CommandType = "room_ids"
	CommandUnsubscribe    CommandType = "unsubscribe_room_id"
	CommandUnsubscribeAll CommandType = "clear_room_ids"
)

// Command is the decoded form of an outbound command. RoomID is set for
// CommandSubscribe and CommandUnsubscribe, RoomIDs for CommandSubscribeMany.
type Command struct {
	Ty      CommandType `json:"ty"`
	RoomID  *AxialPos   `json:"room_id,omitempty"`
	RoomIDs []AxialPos  `json:"room_ids,omitempty"`
}

// EncodeSubscribe builds the command subscribing to a single room.
func EncodeSubscribe(room AxialPos) []byte {
	return mustMarshal(struct {
		Ty     CommandType `json:"ty"`
		RoomID AxialPos    `json:"room_id"`
	}{CommandSubscribe, room})
}

// EncodeSubscribeMany builds the command subscribing to every room given.
func EncodeSubscribeMany(rooms []AxialPos) []byte {
	if rooms == nil {
		rooms = []AxialPos{}
	}
	return mustMarshal(struct {
		Ty      CommandType `json:"ty"`
		RoomIDs []AxialPos  `json:"room_ids"`
	}{CommandSubscribeMany, rooms})
}

// EncodeUnsubscribe builds the command dropping a single room.
func EncodeUnsubscribe(room AxialPos) []byte {
	return mustMarshal(struct {
		Ty     CommandType `json:"ty"`
		RoomID AxialPos    `json:"room_id"`
	}{CommandUnsubscribe, room})
}

// EncodeUnsubscribeAll builds the command dropping every subscription.
func EncodeUnsubscribeAll() []byte {
	return mustMarshal(struct {
		Ty CommandType `json:"ty"`
	}{CommandUnsubscribeAll})
}

// DecodeCommand parses a command produced by the Encode* functions.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, malformed(err)
	}
	switch cmd.Ty {
	case CommandSubscribe, CommandUnsubscribe:
		if cmd.RoomID == nil {
			return Command{}, malformed(fmt.Errorf("%s command without room_id", cmd.Ty))
		}
	case CommandSubscribeMany:
		if cmd.RoomIDs == nil {
			cmd.RoomIDs = []AxialPos{}
		}
	case CommandUnsubscribeAll:
	case "":
		return Command{}, malformed(errors.New("missing command tag"))
	default:
		return Command{}, &DecodeError{Kind: KindUnknownTag, Tag: string(cmd.Ty)}
	}
	return cmd, nil
}

// The command structs hold only integers and strings, marshalling them
// cannot fail.
func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal %T: %v", v, err))
	}
	return b
}
