// Package registry 메모리 내 방 명단 (누가 어느 방에 어떤 순서로 입장했는지)
// 방은 별도 엔티티 없이 같은 roomId를 가진 연결 ID 집합
package registry

import (
	"errors"
	"sync"

	"realtime-board/internal/model"
)

// ErrNotFound join을 마치지 않은 연결
var ErrNotFound = errors.New("participant not found")

// Registry 연결 ID -> 참가자, roomId -> 연결 ID(입장 순) 인덱스
type Registry struct {
	participants map[string]model.Participant
	rooms        map[string][]string
	mu           sync.RWMutex
}

// New 빈 레지스트리 생성
func New() *Registry {
	return &Registry{
		participants: make(map[string]model.Participant),
		rooms:        make(map[string][]string),
	}
}

// Add ConnectionID 기준 추가/덮어쓰기 후 해당 방 명단 반환
func (r *Registry) Add(p model.Participant) []model.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.participants[p.ConnectionID]; exists && prev.RoomID != p.RoomID {
		r.unindex(prev.RoomID, p.ConnectionID)
		r.rooms[p.RoomID] = append(r.rooms[p.RoomID], p.ConnectionID)
	} else if !exists {
		r.rooms[p.RoomID] = append(r.rooms[p.RoomID], p.ConnectionID)
	}
	r.participants[p.ConnectionID] = p

	return r.listLocked(p.RoomID)
}

// Remove 참가자 삭제 후 삭제된 레코드 반환
func (r *Registry) Remove(connectionID string) (model.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[connectionID]
	if !exists {
		return model.Participant{}, ErrNotFound
	}

	delete(r.participants, connectionID)
	r.unindex(p.RoomID, connectionID)
	return p, nil
}

// Get 연결 ID로 참가자 조회
func (r *Registry) Get(connectionID string) (model.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.participants[connectionID]
	if !exists {
		return model.Participant{}, ErrNotFound
	}
	return p, nil
}

// List 방 참가자 목록 (입장 순, 없으면 빈 슬라이스)
func (r *Registry) List(roomID string) []model.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.listLocked(roomID)
}

// ConnectionIDs 방의 연결 ID 목록 (입장 순)
func (r *Registry) ConnectionIDs(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.rooms[roomID]))
	copy(ids, r.rooms[roomID])
	return ids
}

// Stats 방 수와 참가자 수
func (r *Registry) Stats() (rooms, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms), len(r.participants)
}

func (r *Registry) listLocked(roomID string) []model.Participant {
	ids := r.rooms[roomID]
	roster := make([]model.Participant, 0, len(ids))
	for _, id := range ids {
		roster = append(roster, r.participants[id])
	}
	return roster
}

// unindex 방 인덱스에서 제거 (마지막 멤버가 나가면 방도 사라짐)
func (r *Registry) unindex(roomID, connectionID string) {
	ids := r.rooms[roomID]
	for i, id := range ids {
		if id == connectionID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	if len(ids) == 0 {
		delete(r.rooms, roomID)
		return
	}
	r.rooms[roomID] = ids
}
