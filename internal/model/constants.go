package model

// RoomEventType 감사 로그 이벤트 타입
type RoomEventType string

const (
	RoomEventJoin     RoomEventType = "JOIN"
	RoomEventLeave    RoomEventType = "LEAVE"
	RoomEventChat     RoomEventType = "CHAT"
	RoomEventSnapshot RoomEventType = "SNAPSHOT"
	RoomEventElement  RoomEventType = "ELEMENT"
)

func (t RoomEventType) String() string {
	return string(t)
}
