// persistence/interface.go
package persistence

import (
	"errors"
	"fmt"

	"github.com/wfunc/tetris/config"
	"github.com/wfunc/tetris/models"
)

// Database 数据库接口
type Database interface {
	SaveRoomState(record models.RoomRecord) error
	LoadRoomState(roomID string) (*models.RoomRecord, error)
	ListRoomStates(limit int) ([]models.RoomRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)

// NewDatabase opens the backend selected by cfg.Driver: "memory", "gorm"
// or "postgres".
func NewDatabase(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryDatabase(), nil
	case "gorm":
		db, err := NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
