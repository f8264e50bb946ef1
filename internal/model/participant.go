package model

// Participant 방 참가자 (connectionId 기준으로 레지스트리에 한 건)
type Participant struct {
	Name          string `json:"name"`
	ParticipantID string `json:"participantId"` // 클라이언트가 보낸 논리 ID (중복 검증 없음)
	RoomID        string `json:"roomId"`
	IsHost        bool   `json:"isHost"`
	IsPresenter   bool   `json:"isPresenter"`
	ConnectionID  string `json:"connectionId"`
}
