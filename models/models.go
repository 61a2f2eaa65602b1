// models/models.go
package models

import (
	"time"
)

// RoomRecord tracks the lifecycle of one room. Scores are not stored.
type RoomRecord struct {
	RoomID    string    `json:"room_id"`
	GameType  string    `json:"game_type"`
	State     string    `json:"state"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
