// Package protocol 실시간 보드 이벤트 목록과 수신 프레임 검증
// 모든 프레임은 {"type": <event>, "payload": <record>} JSON 봉투
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"realtime-board/internal/canvas"
	"realtime-board/internal/model"
)

var (
	// ErrMalformed 형식 검증 실패
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownEvent 목록에 없는 이벤트 타입
	ErrUnknownEvent = errors.New("unknown event")
)

// client -> server
const (
	EventJoin              = "join"
	EventCanvasUpdate      = "canvasUpdate"
	EventToggleDisplayMode = "toggleDisplayMode"
	EventChatSend          = "chatSend"
	EventElementSend       = "elementSend"
	EventPing              = "ping"
)

// server -> client
const (
	EventJoinConfirmed        = "joinConfirmed"
	EventRosterUpdate         = "rosterUpdate"
	EventJoinAnnounced        = "joinAnnounced"
	EventDepartureAnnounced   = "departureAnnounced"
	EventSnapshotPush         = "snapshotPush"
	EventSnapshotBroadcast    = "snapshotBroadcast"
	EventDisplayModeBroadcast = "displayModeBroadcast"
	EventChatBroadcast        = "chatBroadcast"
	EventElementBroadcast     = "elementBroadcast"
	EventPong                 = "pong"
)

// Envelope 와이어 프레임
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRequest join 페이로드
type JoinRequest struct {
	Name          string `json:"name"`
	ParticipantID string `json:"participantId"`
	RoomID        string `json:"roomId"`
	IsHost        bool   `json:"isHost"`
	IsPresenter   bool   `json:"isPresenter"`
}

// JoinConfirmed 입장한 연결에만 전송. 마지막 스냅샷이 있으면 함께 전달
type JoinConfirmed struct {
	Success  bool                `json:"success"`
	Roster   []model.Participant `json:"roster"`
	Snapshot string              `json:"snapshot,omitempty"`
}

// Announcement joinAnnounced / departureAnnounced 페이로드
type Announcement struct {
	Name          string              `json:"name"`
	ParticipantID string              `json:"participantId"`
	Roster        []model.Participant `json:"roster"`
}

// SnapshotPayload 뷰어에게 보내는 래스터 스냅샷
type SnapshotPayload struct {
	Snapshot string `json:"snapshot"`
}

// ChatSend chatSend 페이로드
type ChatSend struct {
	Text string `json:"text"`
}

// ChatBroadcast 보낸 사람 이름이 붙은 채팅
type ChatBroadcast struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}

// Encode 프레임 생성 (nil 페이로드는 생략)
func Encode(eventType string, payload any) ([]byte, error) {
	env := Envelope{Type: eventType}
	if payload != nil {
		raw, ok := payload.(json.RawMessage)
		if !ok {
			var err error
			if raw, err = json.Marshal(payload); err != nil {
				return nil, fmt.Errorf("encode %s: %w", eventType, err)
			}
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode 봉투만 파싱. 페이로드는 이벤트별 디코더가 처리
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// DecodeJoin join 검증 (roomId만 필수)
func DecodeJoin(raw json.RawMessage) (JoinRequest, error) {
	var req JoinRequest
	if err := decodeObject(raw, &req); err != nil {
		return JoinRequest{}, err
	}
	req.RoomID = strings.TrimSpace(req.RoomID)
	if req.RoomID == "" {
		return JoinRequest{}, fmt.Errorf("%w: join without roomId", ErrMalformed)
	}
	return req, nil
}

// DecodeSnapshot 문자열 또는 {"snapshot": "..."} 허용. null이나 빈 스냅샷은 거부
func DecodeSnapshot(raw json.RawMessage) (string, error) {
	var snapshot string
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &snapshot); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var wrapped SnapshotPayload
		if err := decodeObject(trimmed, &wrapped); err != nil {
			return "", err
		}
		snapshot = wrapped.Snapshot
	}

	if strings.TrimSpace(snapshot) == "" {
		return "", fmt.Errorf("%w: empty snapshot", ErrMalformed)
	}
	return snapshot, nil
}

// DecodeDisplayMode JSON boolean만 허용
func DecodeDisplayMode(raw json.RawMessage) (bool, error) {
	var mode bool
	if err := json.Unmarshal(raw, &mode); err != nil {
		return false, fmt.Errorf("%w: display mode must be a boolean", ErrMalformed)
	}
	return mode, nil
}

// DecodeChat 공백이 아닌 text 필요
func DecodeChat(raw json.RawMessage) (ChatSend, error) {
	var msg ChatSend
	if err := decodeObject(raw, &msg); err != nil {
		return ChatSend{}, err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return ChatSend{}, fmt.Errorf("%w: empty chat text", ErrMalformed)
	}
	return msg, nil
}

// DecodeElement 객체인지, type이 있으면 text인지 확인. 원본 바이트를 그대로 반환
// 도형은 스냅샷으로만 전달됨
func DecodeElement(raw json.RawMessage) (json.RawMessage, error) {
	var head struct {
		Type *canvas.Kind `json:"type"`
	}
	if err := decodeObject(raw, &head); err != nil {
		return nil, err
	}
	if head.Type != nil && *head.Type != canvas.KindText {
		return nil, fmt.Errorf("%w: element type %q is not relayed", ErrMalformed, *head.Type)
	}
	return raw, nil
}

func decodeObject(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: payload must be an object", ErrMalformed)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
