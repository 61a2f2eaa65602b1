// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/tetris/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&RoomModel{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

type RoomModel struct {
	ID        uint     `gorm:"primaryKey"`
	RoomID    string   `gorm:"uniqueIndex;not null"`
	GameType  string   `gorm:"not null"`
	State     string   `gorm:"not null"`
	Players   []string `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RoomModel) TableName() string {
	return "rooms"
}

func (m RoomModel) record() models.RoomRecord {
	return models.RoomRecord{
		RoomID:    m.RoomID,
		GameType:  m.GameType,
		State:     m.State,
		Players:   m.Players,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// SaveRoomState upserts on room_id.
func (p *GormPostgreSQL) SaveRoomState(record models.RoomRecord) error {
	room := RoomModel{
		RoomID:   record.RoomID,
		GameType: record.GameType,
		State:    record.State,
		Players:  record.Players,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "players", "updated_at"}),
	}).Create(&room).Error
}

func (p *GormPostgreSQL) LoadRoomState(roomID string) (*models.RoomRecord, error) {
	var room RoomModel
	if err := p.db.Where("room_id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	record := room.record()
	return &record, nil
}

func (p *GormPostgreSQL) ListRoomStates(limit int) ([]models.RoomRecord, error) {
	var rooms []RoomModel
	query := p.db.Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rooms).Error; err != nil {
		return nil, err
	}

	records := make([]models.RoomRecord, 0, len(rooms))
	for _, room := range rooms {
		records = append(records, room.record())
	}
	return records, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
