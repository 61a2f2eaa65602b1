package state

import (
	"encoding/json"
	"time"

	"github.com/wfunc/tetris/engine"
	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/network"
)

// GameSnapshot is the payload of game start and sync packets.
type GameSnapshot struct {
	engine.Snapshot
	IntervalMS int64 `json:"interval_ms"`
}

func NewGameSnapshot(snap engine.Snapshot) GameSnapshot {
	return GameSnapshot{Snapshot: snap, IntervalMS: snap.Interval.Milliseconds()}
}

// PlayingState forwards owner commands to the engine and
// keeps exactly one gravity timer armed at the engine's interval.
type PlayingState struct {
	RoomStateBase
	timerID    int64
	interval   time.Duration
	generation uint64
	lines      int
}

// NewPlayingState 创建新的游戏状态
func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{
		RoomStateBase: RoomStateBase{
			ID:   StatePlaying,
			Room: room,
		},
	}
}

// OnEnter 进入游戏状态
func (s *PlayingState) OnEnter() {
	eng := s.Room.Engine()
	s.lines = eng.Lines()
	logger.Log.Infof("Room %s started playing, interval %v", s.Room.GetID(), eng.Interval())
	s.broadcastSnapshot(network.MsgTypeGameStart, eng.Snapshot())
	s.arm(eng.Interval())
}

// OnExit 退出游戏状态
func (s *PlayingState) OnExit() {
	s.disarm()
}

// HandleAction applies one owner command and publishes the result.
func (s *PlayingState) HandleAction(player Player, actionData []byte) error {
	action, err := s.ownerAction(player, actionData)
	if err != nil {
		return err
	}

	eng := s.Room.Engine()
	switch action.Type {
	case network.ActionLeft:
		eng.MoveLeft()
	case network.ActionRight:
		eng.MoveRight()
	case network.ActionRotate:
		eng.Rotate()
	case network.ActionSoftDrop:
		eng.SoftDrop()
	case network.ActionHardDrop:
		eng.HardDrop()
	case network.ActionTick:
		eng.Tick()
	case network.ActionRestart:
		eng.Restart()
	case network.ActionStart:
		return nil
	default:
		return ErrUnknownAction
	}
	s.afterCommand()
	return nil
}

func (s *PlayingState) gravity(generation uint64) {
	if generation != s.generation {
		return
	}
	s.Room.Engine().Tick()
	s.afterCommand()
}

func (s *PlayingState) afterCommand() {
	snap := s.Room.Engine().Snapshot()

	if snap.Lines > s.lines {
		s.Room.Metrics().AddLinesCleared(snap.Lines - s.lines)
	}
	s.lines = snap.Lines

	s.broadcastSnapshot(network.MsgTypeGameSync, snap)

	if snap.Status == engine.GameOver {
		if err := s.Room.ChangeState(NewGameOverState(s.Room)); err != nil {
			logger.Log.Errorf("Room %s failed to end game: %v", s.Room.GetID(), err)
		}
		return
	}
	if snap.Interval != s.interval {
		logger.Log.Debugf("Room %s gravity %v -> %v", s.Room.GetID(), s.interval, snap.Interval)
		s.disarm()
		s.arm(snap.Interval)
	}
}

// arm starts a periodic gravity timer. Ticks are queued onto the room loop
// tagged with the generation they were armed under.
func (s *PlayingState) arm(interval time.Duration) {
	s.generation++
	generation := s.generation
	s.interval = interval
	s.timerID = s.Room.Scheduler().AddTimer(interval, interval, func() {
		s.Room.Dispatch(func() { s.gravity(generation) })
	})
}

func (s *PlayingState) disarm() {
	if s.timerID != 0 {
		s.Room.Scheduler().RemoveTimer(s.timerID)
		s.timerID = 0
	}
	s.generation++
}

func (s *PlayingState) broadcastSnapshot(msgID uint16, snap engine.Snapshot) {
	data, err := json.Marshal(NewGameSnapshot(snap))
	if err != nil {
		logger.Log.Errorf("Error marshalling snapshot: %v", err)
		return
	}
	if err := s.Room.Broadcast(msgID, data); err != nil {
		logger.Log.Warnf("Room %s broadcast failed: %v", s.Room.GetID(), err)
	}
}
