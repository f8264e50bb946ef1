package model

import (
	"time"
)

// RoomEvent 방 활동 감사 로그 (상태 복원에는 사용하지 않음)
type RoomEvent struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID        string        `gorm:"type:varchar(255);not null;index:idx_room_events_room_created" json:"room_id"`
	ConnectionID  string        `gorm:"type:varchar(64);not null" json:"connection_id"`
	ParticipantID string        `gorm:"type:varchar(255)" json:"participant_id"`
	Name          string        `gorm:"type:varchar(100)" json:"name"`
	Type          RoomEventType `gorm:"type:varchar(20);not null" json:"type"`
	PayloadSize   int           `gorm:"default:0" json:"payload_size"`
	CreatedAt     time.Time     `gorm:"autoCreateTime;index:idx_room_events_room_created" json:"created_at"`
}

func (RoomEvent) TableName() string {
	return "room_events"
}
