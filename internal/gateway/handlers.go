package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"realtime-board/internal/model"
	"realtime-board/internal/protocol"
	"realtime-board/internal/registry"
)

func (g *Gateway) handleMessage(connectionID string, data []byte) {
	if _, ok := g.conns[connectionID]; !ok {
		return
	}

	env, err := protocol.Decode(data)
	if err != nil {
		log.Printf("[Gateway] Dropped frame from %s: %v", connectionID, err)
		return
	}

	switch env.Type {
	case protocol.EventJoin:
		err = g.handleJoin(connectionID, env.Payload)
	case protocol.EventPing:
		g.reply(connectionID, protocol.EventPong, nil)
	case protocol.EventCanvasUpdate:
		err = g.withSender(connectionID, env, g.handleCanvasUpdate)
	case protocol.EventToggleDisplayMode:
		err = g.withSender(connectionID, env, g.handleToggleDisplayMode)
	case protocol.EventChatSend:
		err = g.withSender(connectionID, env, g.handleChat)
	case protocol.EventElementSend:
		err = g.withSender(connectionID, env, g.handleElement)
	default:
		err = fmt.Errorf("%w: %q", protocol.ErrUnknownEvent, env.Type)
	}

	if err != nil {
		log.Printf("[Gateway] Dropped %s from %s: %v", env.Type, connectionID, err)
	}
}

// withSender 보낸 참가자 조회. 방에 없는 연결의 이벤트는 조용히 버림
func (g *Gateway) withSender(connectionID string, env protocol.Envelope, fn func(model.Participant, json.RawMessage) error) error {
	sender, err := g.registry.Get(connectionID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return fn(sender, env.Payload)
}

// handleJoin 등록 후 입장자에게 확인, 나머지에게 명단 전송, 지연 알림 예약
func (g *Gateway) handleJoin(connectionID string, payload json.RawMessage) error {
	req, err := protocol.DecodeJoin(payload)
	if err != nil {
		return err
	}

	// 다른 방으로 입장하면 이전 방은 퇴장 처리
	if prev, err := g.registry.Get(connectionID); err == nil && prev.RoomID != req.RoomID {
		g.leave(connectionID)
	}

	p := model.Participant{
		Name:          req.Name,
		ParticipantID: req.ParticipantID,
		RoomID:        req.RoomID,
		IsHost:        req.IsHost,
		IsPresenter:   req.IsPresenter,
		ConnectionID:  connectionID,
	}
	roster := g.registry.Add(p)

	confirmed := protocol.JoinConfirmed{Success: true, Roster: roster}
	if snapshot, ok := g.snapshots.Load(p.RoomID); ok {
		confirmed.Snapshot = snapshot
	}
	g.reply(connectionID, protocol.EventJoinConfirmed, confirmed)

	if data, err := protocol.Encode(protocol.EventRosterUpdate, roster); err == nil {
		g.broadcast(p.RoomID, connectionID, data)
	}

	g.scheduleAnnouncement(p, roster)

	if g.opts.Presence != nil {
		g.opts.Presence.Joined(p)
	}
	g.record(p, model.RoomEventJoin, 0)

	log.Printf("[Room %s] %s joined (presenter: %v, host: %v, members: %d)",
		p.RoomID, p.Name, p.IsPresenter, p.IsHost, len(roster))
	return nil
}

// handleAnnounce 입장 알림과 마지막 스냅샷을 나머지 참가자에게 전송
// 토큰이 다르면 취소되었거나 재입장으로 교체된 알림
func (g *Gateway) handleAnnounce(ev announceEvent) {
	pending, ok := g.pending[ev.connectionID]
	if !ok || pending.token != ev.token {
		return
	}
	delete(g.pending, ev.connectionID)

	p := ev.participant
	announcement := protocol.Announcement{
		Name:          p.Name,
		ParticipantID: p.ParticipantID,
		Roster:        ev.roster,
	}
	if data, err := protocol.Encode(protocol.EventJoinAnnounced, announcement); err == nil {
		g.broadcast(p.RoomID, p.ConnectionID, data)
	}

	if snapshot, ok := g.snapshots.Load(p.RoomID); ok {
		payload := protocol.SnapshotPayload{Snapshot: snapshot}
		if data, err := protocol.Encode(protocol.EventSnapshotPush, payload); err == nil {
			g.broadcast(p.RoomID, p.ConnectionID, data)
		}
	}
}

func (g *Gateway) handleCanvasUpdate(sender model.Participant, payload json.RawMessage) error {
	snapshot, err := protocol.DecodeSnapshot(payload)
	if err != nil {
		return err
	}

	g.snapshots.Store(sender.RoomID, snapshot)

	data, err := protocol.Encode(protocol.EventSnapshotBroadcast, protocol.SnapshotPayload{Snapshot: snapshot})
	if err != nil {
		return err
	}
	g.broadcast(sender.RoomID, sender.ConnectionID, data)
	g.record(sender, model.RoomEventSnapshot, len(snapshot))
	return nil
}

func (g *Gateway) handleToggleDisplayMode(sender model.Participant, payload json.RawMessage) error {
	mode, err := protocol.DecodeDisplayMode(payload)
	if err != nil {
		return err
	}

	data, err := protocol.Encode(protocol.EventDisplayModeBroadcast, mode)
	if err != nil {
		return err
	}
	g.broadcast(sender.RoomID, sender.ConnectionID, data)
	return nil
}

func (g *Gateway) handleChat(sender model.Participant, payload json.RawMessage) error {
	msg, err := protocol.DecodeChat(payload)
	if err != nil {
		return err
	}

	text := truncate(msg.Text, g.opts.ChatMaxLength)
	data, err := protocol.Encode(protocol.EventChatBroadcast, protocol.ChatBroadcast{
		Text:       text,
		SenderName: sender.Name,
	})
	if err != nil {
		return err
	}
	g.broadcast(sender.RoomID, sender.ConnectionID, data)
	g.record(sender, model.RoomEventChat, len(text))
	return nil
}

func (g *Gateway) handleElement(sender model.Participant, payload json.RawMessage) error {
	element, err := protocol.DecodeElement(payload)
	if err != nil {
		return err
	}

	data, err := protocol.Encode(protocol.EventElementBroadcast, element)
	if err != nil {
		return err
	}
	g.broadcast(sender.RoomID, sender.ConnectionID, data)
	g.record(sender, model.RoomEventElement, len(element))
	return nil
}

// handleDisconnect 연결 정리. join을 마친 연결만 퇴장 알림 발생
func (g *Gateway) handleDisconnect(connectionID string) {
	conn, ok := g.conns[connectionID]
	if !ok {
		return
	}
	delete(g.conns, connectionID)
	conn.Close()

	g.leave(connectionID)
	log.Printf("[Gateway] Connection closed: %s (total: %d)", connectionID, len(g.conns))
}

// leave 방에서 제거 후 남은 참가자에게 알림
func (g *Gateway) leave(connectionID string) {
	g.cancelAnnouncement(connectionID)

	p, err := g.registry.Remove(connectionID)
	if err != nil {
		return
	}

	roster := g.registry.List(p.RoomID)
	announcement := protocol.Announcement{
		Name:          p.Name,
		ParticipantID: p.ParticipantID,
		Roster:        roster,
	}
	if data, err := protocol.Encode(protocol.EventDepartureAnnounced, announcement); err == nil {
		g.broadcast(p.RoomID, "", data)
	}
	if data, err := protocol.Encode(protocol.EventRosterUpdate, roster); err == nil {
		g.broadcast(p.RoomID, "", data)
	}

	if len(roster) == 0 {
		g.snapshots.Forget(p.RoomID)
	}

	if g.opts.Presence != nil {
		g.opts.Presence.Left(p)
	}
	g.record(p, model.RoomEventLeave, 0)

	log.Printf("[Room %s] %s left (members: %d)", p.RoomID, p.Name, len(roster))
}

func (g *Gateway) reply(connectionID, eventType string, payload any) {
	data, err := protocol.Encode(eventType, payload)
	if err != nil {
		log.Printf("[Gateway] Failed to encode %s: %v", eventType, err)
		return
	}
	g.send(connectionID, data)
}

func (g *Gateway) record(p model.Participant, eventType model.RoomEventType, size int) {
	if g.opts.Recorder == nil {
		return
	}
	g.opts.Recorder.Record(model.RoomEvent{
		RoomID:        p.RoomID,
		ConnectionID:  p.ConnectionID,
		ParticipantID: p.ParticipantID,
		Name:          p.Name,
		Type:          eventType,
		PayloadSize:   size,
		CreatedAt:     time.Now(),
	})
}

// truncate 최대 limit 글자(rune)로 자름
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
