package gateway

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"realtime-board/internal/canvas"
	"realtime-board/internal/model"
	"realtime-board/internal/registry"
)

// =============================================================================
// Connection Gateway - 모든 방을 처리하는 단일 이벤트 루프
// =============================================================================

var (
	// ErrStopped 이벤트 루프 종료 후 반환
	ErrStopped = errors.New("gateway stopped")
	// ErrSendBufferFull 연결의 송신 큐가 가득 참
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnClosed 닫힌 연결로 송신
	ErrConnClosed = errors.New("connection closed")
)

// Connection 참가자별 장기 연결. Send는 블로킹하면 안 됨
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// PresenceMirror 외부 관찰용 입장/퇴장 알림 (이벤트 루프에서 호출되므로 즉시 반환)
type PresenceMirror interface {
	Joined(p model.Participant)
	Left(p model.Participant)
}

// ActivityRecorder 감사 로그용 방 활동 수신 (블로킹 금지)
type ActivityRecorder interface {
	Record(event model.RoomEvent)
}

// Options Gateway 설정
type Options struct {
	JoinAnnounceDelay time.Duration
	GlobalSnapshot    bool
	QueueSize         int
	ChatMaxLength     int
	Presence          PresenceMirror
	Recorder          ActivityRecorder
}

// Gateway 모든 연결 관리. 레지스트리 변경과 브로드캐스트는 Run 고루틴에서만
// 이벤트 하나씩 처리하므로 한 연결의 이벤트는 도착 순서대로 처리됨
type Gateway struct {
	opts      Options
	registry  *registry.Registry
	snapshots *canvas.SnapshotStore

	// 루프 고루틴 전용
	conns   map[string]Connection
	pending map[string]*pendingAnnouncement
	nextTok uint64

	events   chan event
	done     chan struct{}
	stopOnce sync.Once
}

type pendingAnnouncement struct {
	token uint64
	timer *time.Timer
}

type event interface{}

type connectEvent struct {
	conn Connection
}

type messageEvent struct {
	connectionID string
	data         []byte
}

type disconnectEvent struct {
	connectionID string
}

type announceEvent struct {
	connectionID string
	token        uint64
	participant  model.Participant
	roster       []model.Participant
}

type barrierEvent struct {
	done chan struct{}
}

// New Gateway 생성. 연결을 받기 전에 Run을 시작해야 함
func New(opts Options) *Gateway {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.ChatMaxLength <= 0 {
		opts.ChatMaxLength = 2000
	}

	return &Gateway{
		opts:      opts,
		registry:  registry.New(),
		snapshots: canvas.NewSnapshotStore(opts.GlobalSnapshot),
		conns:     make(map[string]Connection),
		pending:   make(map[string]*pendingAnnouncement),
		events:    make(chan event, opts.QueueSize),
		done:      make(chan struct{}),
	}
}

// Run ctx 종료까지 이벤트 처리. 종료 시 대기 중인 알림 취소, 모든 연결 닫음
func (g *Gateway) Run(ctx context.Context) {
	log.Printf("[Gateway] Event loop started (announce delay: %v, global snapshot: %v)",
		g.opts.JoinAnnounceDelay, g.opts.GlobalSnapshot)
	defer log.Printf("[Gateway] Event loop stopped")
	defer g.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-g.events:
			g.step(ev)
		}
	}
}

// Connect 연결 등록 (join 전까지는 방 멤버 아님)
func (g *Gateway) Connect(conn Connection) error {
	return g.enqueue(connectEvent{conn: conn})
}

// Receive 수신 프레임을 큐에 추가
func (g *Gateway) Receive(connectionID string, data []byte) error {
	return g.enqueue(messageEvent{connectionID: connectionID, data: data})
}

// Disconnect 연결 정리 요청 (전송 오류도 정상 종료와 동일하게 처리)
func (g *Gateway) Disconnect(connectionID string) error {
	return g.enqueue(disconnectEvent{connectionID: connectionID})
}

// Roster 방 참가자 목록 (입장 순)
func (g *Gateway) Roster(roomID string) []model.Participant {
	return g.registry.List(roomID)
}

// Stats 사용 중인 방 수와 참가자 수
func (g *Gateway) Stats() (rooms, participants int) {
	return g.registry.Stats()
}

// Done 이벤트 루프 종료 시 닫힘
func (g *Gateway) Done() <-chan struct{} {
	return g.done
}

func (g *Gateway) enqueue(ev event) error {
	select {
	case <-g.done:
		return ErrStopped
	default:
	}

	select {
	case g.events <- ev:
		return nil
	case <-g.done:
		return ErrStopped
	}
}

// flush 앞서 큐에 들어간 이벤트가 모두 처리될 때까지 대기
func (g *Gateway) flush() {
	done := make(chan struct{})
	if err := g.enqueue(barrierEvent{done: done}); err != nil {
		return
	}
	select {
	case <-done:
	case <-g.done:
	}
}

// step 이벤트 하나 처리. 패닉은 이 단계 안에서 복구
func (g *Gateway) step(ev event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Gateway] ⚠️ Recovered from panic while handling %T: %v", ev, r)
		}
	}()

	switch e := ev.(type) {
	case connectEvent:
		g.conns[e.conn.ID()] = e.conn
		log.Printf("[Gateway] Connection opened: %s (total: %d)", e.conn.ID(), len(g.conns))
	case messageEvent:
		g.handleMessage(e.connectionID, e.data)
	case disconnectEvent:
		g.handleDisconnect(e.connectionID)
	case announceEvent:
		g.handleAnnounce(e)
	case barrierEvent:
		close(e.done)
	}
}

func (g *Gateway) stop() {
	g.stopOnce.Do(func() {
		close(g.done)
		for id, p := range g.pending {
			p.timer.Stop()
			delete(g.pending, id)
		}
		for id, conn := range g.conns {
			conn.Close()
			delete(g.conns, id)
		}
	})
}

// scheduleAnnouncement 지연 입장 알림 예약. 타이머는 이벤트만 큐에 넣고 처리는 루프에서
func (g *Gateway) scheduleAnnouncement(p model.Participant, roster []model.Participant) {
	g.cancelAnnouncement(p.ConnectionID)

	g.nextTok++
	token := g.nextTok
	ev := announceEvent{
		connectionID: p.ConnectionID,
		token:        token,
		participant:  p,
		roster:       roster,
	}

	timer := time.AfterFunc(g.opts.JoinAnnounceDelay, func() {
		if err := g.enqueue(ev); err != nil && !errors.Is(err, ErrStopped) {
			log.Printf("[Gateway] Failed to queue join announcement for %s: %v", p.ConnectionID, err)
		}
	})
	g.pending[p.ConnectionID] = &pendingAnnouncement{token: token, timer: timer}
}

func (g *Gateway) cancelAnnouncement(connectionID string) {
	if p, ok := g.pending[connectionID]; ok {
		p.timer.Stop()
		delete(g.pending, connectionID)
	}
}

// send 연결 하나로 전송 (전달 보장 없음)
func (g *Gateway) send(connectionID string, data []byte) {
	conn, ok := g.conns[connectionID]
	if !ok {
		return
	}
	if err := conn.Send(data); err != nil {
		log.Printf("[Gateway] Failed to send to %s: %v", connectionID, err)
	}
}

// broadcast exclude를 제외한 방 전원에게 전송 (""이면 전원)
func (g *Gateway) broadcast(roomID, exclude string, data []byte) {
	for _, id := range g.registry.ConnectionIDs(roomID) {
		if id == exclude {
			continue
		}
		g.send(id, data)
	}
}
