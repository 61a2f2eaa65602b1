package room

import "github.com/wfunc/tetris/models"

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// Recorder stores room lifecycle records. persistence.Database implements it.
type Recorder interface {
	SaveRoomState(record models.RoomRecord) error
}
