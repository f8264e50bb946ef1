package gateway

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SocketConfig 연결별 WebSocket 펌프 설정
type SocketConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteTimeout   time.Duration
}

// socketConn fiber WebSocket을 Connection으로 감쌈. 송신은 writer 고루틴 하나가 처리
type socketConn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSocketConn(id string, ws *websocket.Conn, buffer int) *socketConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &socketConn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *socketConn) ID() string { return c.id }

// Send 논블로킹 큐잉. 느린 수신자는 프레임을 잃음
func (c *socketConn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close writer 중지 (writer가 소켓을 닫아 reader도 종료)
func (c *socketConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *socketConn) writePump(writeTimeout time.Duration, finished chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(finished)
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Gateway] Write failed for %s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// ServeSocket fiber WebSocket 핸들러. 소켓마다 새 연결 ID 부여, join 후 방 멤버가 됨
// 소켓과 writer가 모두 끝날 때까지 반환하지 않음
func (g *Gateway) ServeSocket(cfg SocketConfig) func(*websocket.Conn) {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return func(ws *websocket.Conn) {
		conn := newSocketConn(uuid.NewString(), ws, cfg.SendBuffer)
		if err := g.Connect(conn); err != nil {
			log.Printf("[Gateway] Rejecting socket: %v", err)
			ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		finished := make(chan struct{})
		go conn.writePump(cfg.WriteTimeout, finished)

		if cfg.MaxMessageSize > 0 {
			ws.SetReadLimit(cfg.MaxMessageSize)
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			messageType, msg, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[Gateway] ⚠️ Unexpected disconnect %s: %v", conn.id, err)
				}
				break
			}
			if messageType != websocket.TextMessage {
				continue
			}
			ws.SetReadDeadline(time.Now().Add(pongWait))

			data := make([]byte, len(msg))
			copy(data, msg)
			if err := g.Receive(conn.id, data); err != nil {
				break
			}
		}

		// 전송 오류와 정상 종료를 동일하게 처리
		g.Disconnect(conn.id)
		conn.Close()
		<-finished
	}
}
