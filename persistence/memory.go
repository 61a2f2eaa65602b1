package persistence

import (
	"sort"
	"sync"
	"time"

	"github.com/wfunc/tetris/models"
)

// MemoryDatabase keeps records in process. Used when no database is configured.
type MemoryDatabase struct {
	rooms map[string]models.RoomRecord
	mutex sync.RWMutex
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{rooms: make(map[string]models.RoomRecord)}
}

func (m *MemoryDatabase) SaveRoomState(record models.RoomRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	if existing, ok := m.rooms[record.RoomID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Players = append([]string(nil), record.Players...)
	m.rooms[record.RoomID] = record
	return nil
}

func (m *MemoryDatabase) LoadRoomState(roomID string) (*models.RoomRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	record, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &record, nil
}

// ListRoomStates returns the most recently updated records first.
func (m *MemoryDatabase) ListRoomStates(limit int) ([]models.RoomRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	records := make([]models.RoomRecord, 0, len(m.rooms))
	for _, record := range m.rooms {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryDatabase) Close() error {
	return nil
}
