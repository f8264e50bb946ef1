// Package client gorilla/websocket 기반 보드 클라이언트 (boardctl, 통합 테스트용)
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-board/internal/protocol"
)

const writeWait = 10 * time.Second

// ErrClosed 연결 종료 후 반환
var ErrClosed = errors.New("client closed")

// Client 참가자 연결 하나. 송신은 동시 호출 가능, 수신은 Next/Events로 순서대로 전달
type Client struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	incoming chan protocol.Envelope
	done     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	readErr   error
}

// Dial 보드 서버 WebSocket 엔드포인트 연결 (예: ws://host:5000/ws)
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		ws:       ws,
		incoming: make(chan protocol.Envelope, 256),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.incoming)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Client] read error: %v", err)
			}
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("[Client] dropped frame: %v", err)
			continue
		}
		// 아무도 읽지 않아도 Close로 빠져나올 수 있어야 함
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) send(eventType string, payload any) error {
	data, err := protocol.Encode(eventType, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}
	return nil
}

// Join 방 입장
func (c *Client) Join(req protocol.JoinRequest) error {
	return c.send(protocol.EventJoin, req)
}

// SendCanvasUpdate 방 스냅샷 교체 후 뷰어에게 전달
func (c *Client) SendCanvasUpdate(snapshot string) error {
	return c.send(protocol.EventCanvasUpdate, protocol.SnapshotPayload{Snapshot: snapshot})
}

// ToggleDisplayMode 표시 모드 플래그 전달
func (c *Client) ToggleDisplayMode(mode bool) error {
	return c.send(protocol.EventToggleDisplayMode, mode)
}

// Chat 채팅 전송 (보낸 사람 이름은 서버가 붙임)
func (c *Client) Chat(text string) error {
	return c.send(protocol.EventChatSend, protocol.ChatSend{Text: text})
}

// SendElement 개별 요소(텍스트) 전달
func (c *Client) SendElement(element any) error {
	return c.send(protocol.EventElementSend, element)
}

// Ping 서버에 pong 요청
func (c *Client) Ping() error {
	return c.send(protocol.EventPing, nil)
}

// Events 수신 스트림 (연결 종료 시 닫힘)
func (c *Client) Events() <-chan protocol.Envelope {
	return c.incoming
}

// Next 다음 수신 프레임 대기
func (c *Client) Next(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env, ok := <-c.incoming:
		if !ok {
			return protocol.Envelope{}, c.Err()
		}
		return env, nil
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

// Expect eventType 프레임이 올 때까지 나머지는 건너뜀
func (c *Client) Expect(ctx context.Context, eventType string) (protocol.Envelope, error) {
	for {
		env, err := c.Next(ctx)
		if err != nil {
			return protocol.Envelope{}, fmt.Errorf("waiting for %s: %w", eventType, err)
		}
		if env.Type == eventType {
			return env, nil
		}
	}
}

// Err 수신 스트림이 끝난 이유
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.readErr)
}

// Close close 프레임 전송 후 연결 종료
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
