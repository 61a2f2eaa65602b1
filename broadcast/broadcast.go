// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/room"
	"github.com/wfunc/tetris/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom sends to the owner and every spectator. A failed send to
// one member does not stop the others.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	room, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range room.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("Broadcast to %s in room %s failed: %v", s.ID, roomID, err)
		}
	}

	return nil
}

// BroadcastToAll 向所有在线连接广播
func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("Broadcast to %s failed: %v", s.ID, err)
		}
	}
	return nil
}
