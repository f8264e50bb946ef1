package service

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"realtime-board/internal/model"
)

// EventStore 감사 로그 저장소
type EventStore interface {
	Insert(ctx context.Context, events []model.RoomEvent) error
	Recent(ctx context.Context, roomID string, limit int) ([]model.RoomEvent, error)
}

// GormEventStore PostgreSQL(gorm) 기반 EventStore
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore GormEventStore 생성
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Insert 이벤트 일괄 저장
func (s *GormEventStore) Insert(ctx context.Context, events []model.RoomEvent) error {
	return s.db.WithContext(ctx).CreateInBatches(events, len(events)).Error
}

// Recent 방의 최근 이벤트 조회 (최신순)
func (s *GormEventStore) Recent(ctx context.Context, roomID string, limit int) ([]model.RoomEvent, error) {
	var events []model.RoomEvent
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// AuditService 방 활동을 비동기로 기록 (게이트웨이 이벤트 루프를 막지 않음)
type AuditService struct {
	store         EventStore
	queue         chan model.RoomEvent
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64
}

// NewAuditService AuditService 생성
func NewAuditService(store EventStore, buffer int) *AuditService {
	if buffer <= 0 {
		buffer = 1024
	}
	return &AuditService{
		store:         store,
		queue:         make(chan model.RoomEvent, buffer),
		batchSize:     100,
		flushInterval: time.Second,
	}
}

// Record 이벤트 큐에 추가. 큐가 가득 차면 버림
func (s *AuditService) Record(event model.RoomEvent) {
	select {
	case s.queue <- event:
	default:
		if n := s.dropped.Add(1); n%100 == 1 {
			log.Printf("[Audit] ⚠️ Queue full, dropped %d events so far", n)
		}
	}
}

// Dropped 큐 초과로 버린 이벤트 수
func (s *AuditService) Dropped() int64 {
	return s.dropped.Load()
}

// Run 큐를 배치로 비워 저장. ctx 종료 시 남은 이벤트를 저장하고 반환
func (s *AuditService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]model.RoomEvent, 0, s.batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-s.queue:
					batch = append(batch, event)
				default:
					s.flush(batch)
					return
				}
			}
		case event := <-s.queue:
			batch = append(batch, event)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *AuditService) flush(batch []model.RoomEvent) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make([]model.RoomEvent, len(batch))
	copy(events, batch)
	if err := s.store.Insert(ctx, events); err != nil {
		log.Printf("[Audit] Failed to store %d events: %v", len(events), err)
	}
}

// RecentEvents 방의 최근 활동 조회
func (s *AuditService) RecentEvents(ctx context.Context, roomID string, limit int) ([]model.RoomEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Recent(ctx, roomID, limit)
}
