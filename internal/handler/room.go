package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"realtime-board/internal/model"
)

// RoomDirectory 현재 방/참가자 조회 (게이트웨이가 구현)
type RoomDirectory interface {
	Roster(roomID string) []model.Participant
	Stats() (rooms, participants int)
}

// EventLister 감사 로그 조회 (AuditService가 구현)
type EventLister interface {
	RecentEvents(ctx context.Context, roomID string, limit int) ([]model.RoomEvent, error)
}

// RoomHandler 방 관련 REST 핸들러
type RoomHandler struct {
	rooms  RoomDirectory
	events EventLister
}

// NewRoomHandler RoomHandler 생성 (events는 nil 가능)
func NewRoomHandler(rooms RoomDirectory, events EventLister) *RoomHandler {
	return &RoomHandler{rooms: rooms, events: events}
}

// CreateRoom 새 방 ID 발급
// POST /api/rooms
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"roomId": uuid.NewString(),
	})
}

// GetParticipants 방 참가자 목록 (입장 순서)
// GET /api/rooms/:roomId/participants
func (h *RoomHandler) GetParticipants(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "roomId is required"})
	}

	participants := h.rooms.Roster(roomID)
	return c.JSON(fiber.Map{
		"roomId":       roomID,
		"participants": participants,
		"count":        len(participants),
	})
}

// GetEvents 방의 최근 활동 로그
// GET /api/rooms/:roomId/events?limit=N
func (h *RoomHandler) GetEvents(c *fiber.Ctx) error {
	if h.events == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Audit log is not configured"})
	}

	roomID := c.Params("roomId")
	events, err := h.events.RecentEvents(c.UserContext(), roomID, c.QueryInt("limit", 100))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch events"})
	}
	if events == nil {
		events = []model.RoomEvent{}
	}

	return c.JSON(fiber.Map{
		"roomId": roomID,
		"events": events,
	})
}

// GetStats 전체 방/참가자 수
// GET /stats
func (h *RoomHandler) GetStats(c *fiber.Ctx) error {
	rooms, participants := h.rooms.Stats()
	return c.JSON(fiber.Map{
		"rooms":        rooms,
		"participants": participants,
	})
}
