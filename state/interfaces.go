// state/interfaces.go
package state

import (
	"time"

	"github.com/wfunc/tetris/engine"
)

// Player defines the minimal interface for a player entity that a state needs to interact with.
type Player interface {
	GetID() string
}

// Scheduler arms and cancels timers. timer.TimerManager implements it.
type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64) bool
}

// GameMetrics receives gameplay counters.
type GameMetrics interface {
	AddLinesCleared(n int)
	IncGamesOver()
}

// RoomContext defines the interface that a Room must implement to be managed by the state machine.
// This breaks the import cycle between room and state.
type RoomContext interface {
	GetID() string
	GetGameType() string
	GetPlayers() map[string]Player
	IsOwner(player Player) bool
	// Engine is only safe to use from the room loop, which is where
	// every State method runs.
	Engine() *engine.Engine
	Scheduler() Scheduler
	Metrics() GameMetrics
	ChangeState(newState State) error
	Broadcast(msgID uint16, data []byte) error
	// Dispatch queues fn to run on the room loop. It reports false once
	// the room is closed.
	Dispatch(fn func()) bool
}
