package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"realtime-board/internal/config"
	"realtime-board/internal/model"
)

// Channel Presence 변경 이벤트 발행 채널
const Channel = "canvas_presence"

// EventKind Presence 이벤트 종류
type EventKind string

const (
	EventJoin  EventKind = "join"
	EventLeave EventKind = "leave"
)

// PresenceData Redis에 저장/발행되는 참가자 상태
type PresenceData struct {
	Event         EventKind `json:"event"`
	ConnectionID  string    `json:"connection_id"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	RoomID        string    `json:"room_id"`
	IsHost        bool      `json:"is_host"`
	IsPresenter   bool      `json:"is_presenter"`
	LastHeartbeat int64     `json:"last_heartbeat"`
	ServerID      string    `json:"server_id"` // 멀티 서버 확장 대비
}

// writeQueueSize 미러 쓰기 대기열 크기
const writeQueueSize = 1024

// mirrorWrite 쓰기 워커가 순서대로 적용하는 작업 (done만 있으면 flush 표식)
type mirrorWrite struct {
	data  PresenceData
	apply func(context.Context, PresenceData) error
	done  chan struct{}
}

// Manager 방 참가자를 Redis에 미러링 (외부 관찰용, 릴레이는 읽지 않음)
type Manager struct {
	client   *redis.Client
	ttl      time.Duration
	serverID string
	timeout  time.Duration

	mu      sync.Mutex
	tracked map[string]model.Participant

	// 단일 워커가 FIFO로 적용하므로 같은 연결의 set/del 순서가 보장됨
	writes    chan mirrorWrite
	quit      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
}

// NewManager Redis 연결 후 Manager 생성
func NewManager(cfg config.RedisConfig, serverID string) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Printf("[Redis] Connected to %s", cfg.Addr)
	return newManager(client, cfg.PresenceTTL, serverID), nil
}

func newManager(client *redis.Client, ttl time.Duration, serverID string) *Manager {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	m := &Manager{
		client:   client,
		ttl:      ttl,
		serverID: serverID,
		timeout:  2 * time.Second,
		tracked:  make(map[string]model.Participant),
		writes:   make(chan mirrorWrite, writeQueueSize),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go m.writer()
	return m
}

// ConnKey 연결별 상태 키
func ConnKey(connectionID string) string {
	return "presence:conn:" + connectionID
}

// RoomKey 방별 연결 집합 키
func RoomKey(roomID string) string {
	return "presence:room:" + roomID
}

func (m *Manager) newData(kind EventKind, p model.Participant) PresenceData {
	return PresenceData{
		Event:         kind,
		ConnectionID:  p.ConnectionID,
		ParticipantID: p.ParticipantID,
		Name:          p.Name,
		RoomID:        p.RoomID,
		IsHost:        p.IsHost,
		IsPresenter:   p.IsPresenter,
		LastHeartbeat: time.Now().Unix(),
		ServerID:      m.serverID,
	}
}

// SetPresence 참가 상태 저장 (TTL) 및 방 집합에 추가
func (m *Manager) SetPresence(ctx context.Context, data PresenceData) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ConnKey(data.ConnectionID), jsonData, m.ttl)
		pipe.SAdd(ctx, RoomKey(data.RoomID), data.ConnectionID)
		pipe.Expire(ctx, RoomKey(data.RoomID), m.ttl)
		return nil
	})
	return err
}

// RemovePresence 참가 상태 삭제
func (m *Manager) RemovePresence(ctx context.Context, data PresenceData) error {
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ConnKey(data.ConnectionID))
		pipe.SRem(ctx, RoomKey(data.RoomID), data.ConnectionID)
		return nil
	})
	return err
}

// PublishPresence 상태 변경 이벤트 발행
func (m *Manager) PublishPresence(ctx context.Context, data PresenceData) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, Channel, jsonData).Err()
}

// SubscribePresence 상태 변경 이벤트 구독
func (m *Manager) SubscribePresence(ctx context.Context) *redis.PubSub {
	return m.client.Subscribe(ctx, Channel)
}

// Joined 게이트웨이 이벤트 루프에서 호출됨. Redis 쓰기는 워커가 처리
func (m *Manager) Joined(p model.Participant) {
	m.mu.Lock()
	m.tracked[p.ConnectionID] = p
	m.mu.Unlock()

	m.enqueue(mirrorWrite{data: m.newData(EventJoin, p), apply: m.SetPresence})
}

// Left 게이트웨이 이벤트 루프에서 호출됨
func (m *Manager) Left(p model.Participant) {
	m.mu.Lock()
	delete(m.tracked, p.ConnectionID)
	m.mu.Unlock()

	m.enqueue(mirrorWrite{data: m.newData(EventLeave, p), apply: m.RemovePresence})
}

// enqueue 대기열이 가득 차면 버림 (호출자를 막지 않음)
func (m *Manager) enqueue(w mirrorWrite) {
	select {
	case m.writes <- w:
	default:
		log.Printf("[Redis] Write queue full, dropped %s for %s", w.data.Event, w.data.ConnectionID)
	}
}

// writer 대기열을 순서대로 적용. 종료 시 남은 쓰기를 비우고 반환
func (m *Manager) writer() {
	defer close(m.finished)

	for {
		select {
		case w := <-m.writes:
			m.handle(w)
		case <-m.quit:
			for {
				select {
				case w := <-m.writes:
					m.handle(w)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) handle(w mirrorWrite) {
	if w.done != nil {
		close(w.done)
		return
	}
	m.apply(w.data, w.apply)
}

func (m *Manager) apply(data PresenceData, write func(context.Context, PresenceData) error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := write(ctx, data); err != nil {
		log.Printf("[Redis] Failed to mirror %s for %s: %v", data.Event, data.ConnectionID, err)
		return
	}
	if err := m.PublishPresence(ctx, data); err != nil {
		log.Printf("[Redis] Failed to publish %s for %s: %v", data.Event, data.ConnectionID, err)
	}
}

// flush 앞서 대기열에 들어간 쓰기가 모두 적용될 때까지 대기
func (m *Manager) flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case m.writes <- mirrorWrite{done: done}:
	case <-m.finished:
		return redis.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-m.finished:
		return redis.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tracked 현재 미러링 중인 연결 수
func (m *Manager) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

// Run TTL 절반 주기로 하트비트 갱신 (ctx 종료 시 반환)
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refresh(ctx)
		}
	}
}

// refresh 살아 있는 연결의 키 TTL 연장
func (m *Manager) refresh(ctx context.Context) {
	m.mu.Lock()
	participants := make([]model.Participant, 0, len(m.tracked))
	for _, p := range m.tracked {
		participants = append(participants, p)
	}
	m.mu.Unlock()

	if len(participants) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range participants {
			pipe.Expire(ctx, ConnKey(p.ConnectionID), m.ttl)
			pipe.Expire(ctx, RoomKey(p.RoomID), m.ttl)
		}
		return nil
	})
	if err != nil {
		log.Printf("[Redis] Heartbeat refresh failed: %v", err)
	}
}

// Health Redis 연결 확인
func (m *Manager) Health(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close 남은 쓰기를 적용한 뒤 Redis 연결 종료
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.quit)
		<-m.finished
		err = m.client.Close()
	})
	return err
}
