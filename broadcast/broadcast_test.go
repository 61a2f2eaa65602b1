package broadcast

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tetris/network"
	"github.com/wfunc/tetris/room"
	"github.com/wfunc/tetris/session"
	"github.com/wfunc/tetris/timer"
)

type recordingConn struct {
	mutex sync.Mutex
	ids   []uint16
	fail  bool
}

func (c *recordingConn) Send(msgID uint16, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.ids = append(c.ids, msgID)
	return nil
}

func (c *recordingConn) received() []uint16 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]uint16(nil), c.ids...)
}

func (c *recordingConn) Close() error                         { return nil }
func (c *recordingConn) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (c *recordingConn) SetHeartbeat(interval time.Duration)  {}
func (c *recordingConn) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestBroadcastToRoom(t *testing.T) {
	rooms := room.NewRoomManager()
	defer rooms.CloseAll()
	sessions := session.NewManager()
	b := NewRoomBroadcaster(rooms, sessions)

	tm := timer.NewTimerManager(10 * time.Millisecond)
	defer tm.Stop()

	ownerConn, brokenConn, outsiderConn := &recordingConn{}, &recordingConn{fail: true}, &recordingConn{}
	owner := session.NewSession("owner", ownerConn)
	broken := session.NewSession("broken", brokenConn)
	outsider := session.NewSession("outsider", outsiderConn)
	for _, s := range []*session.Session{owner, broken, outsider} {
		sessions.Add(s)
	}

	r := rooms.CreateRoom("r1", "Room", owner, room.Options{
		StartDelay:    time.Hour,
		MaxSpectators: 4,
		Scheduler:     tm,
		Broadcaster:   b,
	})
	require.NoError(t, r.AddPlayer(broken))

	require.NoError(t, b.BroadcastToRoom("r1", network.MsgTypeRoomState, []byte("{}")))
	assert.Equal(t, []uint16{network.MsgTypeRoomState}, ownerConn.received())
	assert.Empty(t, outsiderConn.received())

	assert.ErrorIs(t, b.BroadcastToRoom("missing", network.MsgTypeRoomState, nil), ErrRoomNotFound)
}

func TestBroadcastToAll(t *testing.T) {
	sessions := session.NewManager()
	b := NewRoomBroadcaster(room.NewRoomManager(), sessions)

	a, c := &recordingConn{}, &recordingConn{}
	sessions.Add(session.NewSession("a", a))
	sessions.Add(session.NewSession("c", c))

	require.NoError(t, b.BroadcastToAll(network.MsgTypeError, []byte(`{"error":"shutdown"}`)))
	assert.Equal(t, []uint16{network.MsgTypeError}, a.received())
	assert.Equal(t, []uint16{network.MsgTypeError}, c.received())
}
