package canvas

import (
	"sync"
)

// SnapshotStore 마지막 스냅샷 보관 (마지막 쓰기 우선)
// global 모드는 모든 방이 값 하나를 공유 (구버전 서버 동작), 방별 모드는 방끼리 격리
type SnapshotStore struct {
	global   bool
	shared   string
	hasShare bool
	rooms    map[string]string
	mu       sync.RWMutex
}

// NewSnapshotStore 생성 (global이면 공유 모드)
func NewSnapshotStore(global bool) *SnapshotStore {
	return &SnapshotStore{
		global: global,
		rooms:  make(map[string]string),
	}
}

// Global 공유 모드 여부
func (s *SnapshotStore) Global() bool {
	return s.global
}

// Store 방의 마지막 스냅샷 교체
func (s *SnapshotStore) Store(roomID, snapshot string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.global {
		s.shared = snapshot
		s.hasShare = true
		return
	}
	s.rooms[roomID] = snapshot
}

// Load 방의 마지막 스냅샷 조회
func (s *SnapshotStore) Load(roomID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.global {
		return s.shared, s.hasShare
	}
	snapshot, ok := s.rooms[roomID]
	return snapshot, ok
}

// Forget 빈 방의 스냅샷 삭제 (global 모드에서는 무시)
func (s *SnapshotStore) Forget(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.global {
		delete(s.rooms, roomID)
	}
}

// Len 보관 중인 방 스냅샷 수
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.global {
		if s.hasShare {
			return 1
		}
		return 0
	}
	return len(s.rooms)
}
