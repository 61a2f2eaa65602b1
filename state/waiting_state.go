package state

import (
	"time"

	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/network"
)

// WaitingState starts the game when the owner sends "start" or after delay.
type WaitingState struct {
	RoomStateBase
	delay    time.Duration
	deadline time.Time
}

// NewWaitingState creates a new waiting state.
func NewWaitingState(room RoomContext, delay time.Duration) *WaitingState {
	return &WaitingState{
		RoomStateBase: RoomStateBase{
			ID:   StateWaiting,
			Room: room,
		},
		delay: delay,
	}
}

func (s *WaitingState) OnEnter() {
	s.deadline = time.Now().Add(s.delay)
}

func (s *WaitingState) OnUpdate() {
	if !time.Now().Before(s.deadline) {
		s.start()
	}
}

func (s *WaitingState) HandleAction(player Player, actionData []byte) error {
	action, err := s.ownerAction(player, actionData)
	if err != nil {
		return err
	}
	switch action.Type {
	case network.ActionStart:
		s.start()
		return nil
	case network.ActionLeft, network.ActionRight, network.ActionRotate, network.ActionSoftDrop,
		network.ActionHardDrop, network.ActionTick, network.ActionRestart:
		// the board is not live yet
		return nil
	}
	return ErrUnknownAction
}

func (s *WaitingState) start() {
	if err := s.Room.ChangeState(NewPlayingState(s.Room)); err != nil {
		logger.Log.Errorf("Room %s failed to start: %v", s.Room.GetID(), err)
	}
}
