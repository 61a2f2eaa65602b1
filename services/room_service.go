// services/room_service.go
package services

import (
	"errors"
	"time"

	"github.com/wfunc/tetris/models"
	"github.com/wfunc/tetris/persistence"
	"github.com/wfunc/tetris/room"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomSummary is the admin view of one room. Live rooms carry game
// progress; rooms known only from storage carry their last state.
type RoomSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	State      string    `json:"state"`
	Players    []string  `json:"players"`
	Live       bool      `json:"live"`
	Score      int       `json:"score"`
	Lines      int       `json:"lines"`
	Status     string    `json:"status,omitempty"`
	IntervalMS int64     `json:"interval_ms,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RoomService struct {
	rooms *room.Manager
	db    persistence.Database
}

func NewRoomService(rooms *room.Manager, db persistence.Database) *RoomService {
	return &RoomService{rooms: rooms, db: db}
}

// ListRooms returns live rooms first, then stored rooms that are no longer
// live, most recently updated first. limit caps the total; 0 means all.
func (s *RoomService) ListRooms(limit int) ([]RoomSummary, error) {
	rooms := s.rooms.Rooms()
	result := make([]RoomSummary, 0, len(rooms))
	live := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		summary, err := s.liveSummary(r)
		if errors.Is(err, room.ErrRoomClosed) {
			// closed while listing
			continue
		}
		if err != nil {
			return nil, err
		}
		live[r.ID] = true
		result = append(result, summary)
	}

	if s.db != nil {
		records, err := s.db.ListRoomStates(limit)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if live[record.RoomID] {
				continue
			}
			result = append(result, storedSummary(record))
		}
	}

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetRoom 获取房间信息，不在线的房间从存储中读取
func (s *RoomService) GetRoom(roomID string) (RoomSummary, error) {
	if r, ok := s.rooms.GetRoom(roomID); ok {
		summary, err := s.liveSummary(r)
		if err == nil {
			return summary, nil
		}
		if !errors.Is(err, room.ErrRoomClosed) {
			return RoomSummary{}, err
		}
	}

	if s.db == nil {
		return RoomSummary{}, ErrRoomNotFound
	}
	record, err := s.db.LoadRoomState(roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return RoomSummary{}, ErrRoomNotFound
	}
	if err != nil {
		return RoomSummary{}, err
	}
	return storedSummary(*record), nil
}

func storedSummary(record models.RoomRecord) RoomSummary {
	return RoomSummary{
		ID:        record.RoomID,
		State:     record.State,
		Players:   record.Players,
		UpdatedAt: record.UpdatedAt,
	}
}

func (s *RoomService) liveSummary(r *room.Room) (RoomSummary, error) {
	snap, stateID, err := r.Snapshot()
	if err != nil {
		return RoomSummary{}, err
	}
	return RoomSummary{
		ID:         r.ID,
		Name:       r.Name,
		State:      stateID,
		Players:    r.PlayerIDs(),
		Live:       true,
		Score:      snap.Score,
		Lines:      snap.Lines,
		Status:     snap.Status.String(),
		IntervalMS: snap.Interval.Milliseconds(),
		UpdatedAt:  time.Now(),
	}, nil
}
