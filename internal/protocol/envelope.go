package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	MsgMoveLeft        = "moveLeft"
	MsgMoveRight       = "moveRight"
	MsgMoveUp          = "moveUp"
	MsgMoveDown        = "moveDown"
	MsgChat            = "chat"
	MsgRefresh         = "refresh"
	MsgGetRoomMessages = "getRoomMessages"
	MsgViewport        = "viewport"
)

// Outbound message types.
const (
	MsgSpawn        = "spawn"
	MsgDespawn      = "despawn"
	MsgUpdateStatus = "updateStatus"
)

// Envelope is the tagged wire frame. MessageBody is left raw on decode so
// each handler unmarshals only the shape it expects.
type Envelope struct {
	MessageType string          `json:"messageType"`
	MessageBody json.RawMessage `json:"messageBody"`
}

// Decode parses an inbound frame. A frame without a messageType is
// malformed.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env.MessageType == "" {
		return nil, fmt.Errorf("decode frame: missing messageType")
	}
	return &env, nil
}

// Encode builds an outbound frame.
func Encode(messageType string, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", messageType, err)
	}
	frame, err := json.Marshal(Envelope{MessageType: messageType, MessageBody: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", messageType, err)
	}
	return frame, nil
}

// ViewportBody is the client-reported viewport size in pixels.
type ViewportBody struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
