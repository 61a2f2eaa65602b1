package network

const (
	MsgTypeHeartbeat    = 1
	MsgTypeJoinRoom     = 101
	MsgTypeLeaveRoom    = 102
	MsgTypeCreateRoom   = 103
	MsgTypePlayerAction = 202
	MsgTypeRoomState    = 301
	MsgTypeGameStart    = 303
	MsgTypeGameSync     = 304
	MsgTypeGameEnd      = 305
	MsgTypeError        = 306
)

// Player action types carried in MsgTypePlayerAction payloads.
const (
	ActionLeft     = "left"
	ActionRight    = "right"
	ActionRotate   = "rotate"
	ActionSoftDrop = "soft_drop"
	ActionHardDrop = "hard_drop"
	ActionTick     = "tick"
	ActionRestart  = "restart"
	ActionStart    = "start"
)

// Action is the payload of a player action packet.
type Action struct {
	Type string `json:"type"`
}

// ErrorMessage is the payload of MsgTypeError.
type ErrorMessage struct {
	Error string `json:"error"`
}

// RoomRequest is the payload of join requests and create replies.
type RoomRequest struct {
	RoomID string `json:"room_id"`
}

// RoomState is the payload of MsgTypeRoomState and join replies.
type RoomState struct {
	RoomID  string   `json:"room_id"`
	State   string   `json:"state"`
	OwnerID string   `json:"owner_id"`
	Players []string `json:"players"`
}
