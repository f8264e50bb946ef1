package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-board/internal/model"
)

type memoryStore struct {
	mu      sync.Mutex
	batches [][]model.RoomEvent
	limit   int
}

func (m *memoryStore) Insert(_ context.Context, events []model.RoomEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, events)
	return nil
}

func (m *memoryStore) Recent(_ context.Context, roomID string, limit int) ([]model.RoomEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
	var out []model.RoomEvent
	for _, b := range m.batches {
		for _, e := range b {
			if e.RoomID == roomID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *memoryStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestAuditService_FlushesOnShutdown(t *testing.T) {
	store := &memoryStore{}
	svc := NewAuditService(store, 10)
	svc.flushInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	svc.Record(model.RoomEvent{RoomID: "R1", Type: model.RoomEventJoin})
	svc.Record(model.RoomEvent{RoomID: "R1", Type: model.RoomEventChat})
	svc.Record(model.RoomEvent{RoomID: "R2", Type: model.RoomEventJoin})

	cancel()
	<-done

	assert.Equal(t, 3, store.total())

	events, err := svc.RecentEvents(context.Background(), "R1", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 100, store.limit, "non-positive limit falls back to the default")
}

func TestAuditService_BatchesBySize(t *testing.T) {
	store := &memoryStore{}
	svc := NewAuditService(store, 10)
	svc.batchSize = 2
	svc.flushInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	for i := 0; i < 4; i++ {
		svc.Record(model.RoomEvent{RoomID: "R1", Type: model.RoomEventSnapshot})
	}

	assert.Eventually(t, func() bool { return store.total() == 4 }, time.Second, 5*time.Millisecond)
}

func TestAuditService_DropsWhenQueueFull(t *testing.T) {
	svc := NewAuditService(&memoryStore{}, 2)

	for i := 0; i < 5; i++ {
		svc.Record(model.RoomEvent{RoomID: "R1"})
	}

	assert.Equal(t, int64(3), svc.Dropped())
}
