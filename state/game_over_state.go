package state

import (
	"encoding/json"

	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/network"
)

// GameResult is the payload of MsgTypeGameEnd.
type GameResult struct {
	Score int `json:"score"`
	Lines int `json:"lines"`
}

// GameOverState holds a finished board until the owner restarts.
type GameOverState struct {
	RoomStateBase
	Result GameResult
}

func NewGameOverState(room RoomContext) *GameOverState {
	return &GameOverState{
		RoomStateBase: RoomStateBase{
			ID:   StateGameOver,
			Room: room,
		},
	}
}

func (s *GameOverState) OnEnter() {
	eng := s.Room.Engine()
	s.Result = GameResult{Score: eng.Score(), Lines: eng.Lines()}
	logger.Log.Infof("Room %s game over, score %d", s.Room.GetID(), s.Result.Score)

	s.Room.Metrics().IncGamesOver()

	data, _ := json.Marshal(s.Result)
	if err := s.Room.Broadcast(network.MsgTypeGameEnd, data); err != nil {
		logger.Log.Warnf("Room %s broadcast failed: %v", s.Room.GetID(), err)
	}
}

// HandleAction accepts restart; every other command is ignored.
func (s *GameOverState) HandleAction(player Player, actionData []byte) error {
	action, err := s.ownerAction(player, actionData)
	if err != nil {
		return err
	}
	switch action.Type {
	case network.ActionRestart:
		s.Room.Engine().Restart()
		return s.Room.ChangeState(NewPlayingState(s.Room))
	case network.ActionLeft, network.ActionRight, network.ActionRotate, network.ActionSoftDrop,
		network.ActionHardDrop, network.ActionTick, network.ActionStart:
		return nil
	}
	return ErrUnknownAction
}
