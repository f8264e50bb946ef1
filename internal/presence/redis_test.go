package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-board/internal/model"
)

// unreachable returns a manager whose client can never connect, so only the
// in-process bookkeeping is exercised.
func unreachable(t *testing.T) *Manager {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})

	m := newManager(client, 0, "test-server")
	m.timeout = 100 * time.Millisecond
	t.Cleanup(func() { m.Close() })
	return m
}

// mirror returns a manager backed by an in-memory redis.
func mirror(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	m := newManager(client, 10*time.Second, "test-server")
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func flushed(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.flush(ctx))
}

func stored(t *testing.T, mr *miniredis.Miniredis, connectionID string) PresenceData {
	t.Helper()
	raw, err := mr.Get(ConnKey(connectionID))
	require.NoError(t, err)

	var data PresenceData
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return data
}

func inRoom(t *testing.T, m *Manager, roomID, connectionID string) bool {
	t.Helper()
	ok, err := m.client.SIsMember(context.Background(), RoomKey(roomID), connectionID).Result()
	require.NoError(t, err)
	return ok
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "presence:conn:abc", ConnKey("abc"))
	assert.Equal(t, "presence:room:R1", RoomKey("R1"))
}

func TestNewData(t *testing.T) {
	m := unreachable(t)
	p := model.Participant{
		Name:          "A",
		ParticipantID: "u1",
		RoomID:        "R1",
		IsHost:        true,
		IsPresenter:   true,
		ConnectionID:  "c1",
	}

	data := m.newData(EventJoin, p)
	assert.Equal(t, EventJoin, data.Event)
	assert.Equal(t, "test-server", data.ServerID)
	assert.NotZero(t, data.LastHeartbeat)

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "join", decoded["event"])
	assert.Equal(t, "c1", decoded["connection_id"])
	assert.Equal(t, "R1", decoded["room_id"])
	assert.Equal(t, true, decoded["is_presenter"])
}

func TestJoinedLeft_TracksWithoutBlocking(t *testing.T) {
	m := unreachable(t)
	p := model.Participant{Name: "A", RoomID: "R1", ConnectionID: "c1"}

	start := time.Now()
	m.Joined(p)
	m.Joined(model.Participant{Name: "B", RoomID: "R1", ConnectionID: "c2"})
	assert.True(t, time.Since(start) < 50*time.Millisecond, "mirroring must not block the caller")
	assert.Equal(t, 2, m.Tracked())

	m.Left(p)
	assert.Equal(t, 1, m.Tracked())
}

func TestMirror_JoinThenLeave(t *testing.T) {
	m, mr := mirror(t)
	p := model.Participant{Name: "A", ParticipantID: "u1", RoomID: "R1", ConnectionID: "c1", IsPresenter: true}

	m.Joined(p)
	flushed(t, m)

	data := stored(t, mr, "c1")
	assert.Equal(t, EventJoin, data.Event)
	assert.Equal(t, "A", data.Name)
	assert.Equal(t, "R1", data.RoomID)
	assert.True(t, data.IsPresenter)
	assert.Equal(t, 10*time.Second, mr.TTL(ConnKey("c1")))
	assert.Equal(t, 10*time.Second, mr.TTL(RoomKey("R1")))
	assert.True(t, inRoom(t, m, "R1", "c1"))

	m.Left(p)
	flushed(t, m)

	assert.False(t, mr.Exists(ConnKey("c1")))
	assert.False(t, inRoom(t, m, "R1", "c1"))
}

func TestMirror_WritesApplyInOrder(t *testing.T) {
	m, mr := mirror(t)

	for i := 0; i < 100; i++ {
		gone := model.Participant{Name: "P", RoomID: "R1", ConnectionID: fmt.Sprintf("p%d", i)}
		m.Joined(gone)
		m.Left(gone)

		moved := model.Participant{Name: "Q", RoomID: "R1", ConnectionID: fmt.Sprintf("q%d", i)}
		m.Joined(moved)
		m.Left(moved)
		moved.RoomID = "R2"
		m.Joined(moved)
	}
	flushed(t, m)

	for i := 0; i < 100; i++ {
		p := fmt.Sprintf("p%d", i)
		q := fmt.Sprintf("q%d", i)

		assert.False(t, mr.Exists(ConnKey(p)), "departed %s still mirrored", p)
		assert.False(t, inRoom(t, m, "R1", p))

		require.True(t, mr.Exists(ConnKey(q)), "rejoined %s lost its key", q)
		assert.Equal(t, "R2", stored(t, mr, q).RoomID)
		assert.False(t, inRoom(t, m, "R1", q))
		assert.True(t, inRoom(t, m, "R2", q))
	}
	assert.Equal(t, 100, m.Tracked())
}

func TestMirror_RefreshExtendsTTL(t *testing.T) {
	m, mr := mirror(t)
	p := model.Participant{Name: "A", RoomID: "R1", ConnectionID: "c1"}

	m.Joined(p)
	flushed(t, m)

	mr.FastForward(8 * time.Second)
	assert.Equal(t, 2*time.Second, mr.TTL(ConnKey("c1")))

	m.refresh(context.Background())
	assert.Equal(t, 10*time.Second, mr.TTL(ConnKey("c1")))
	assert.Equal(t, 10*time.Second, mr.TTL(RoomKey("R1")))
}

func TestMirror_ExpiresWithoutRefresh(t *testing.T) {
	m, mr := mirror(t)

	m.Joined(model.Participant{Name: "A", RoomID: "R1", ConnectionID: "c1"})
	flushed(t, m)

	mr.FastForward(11 * time.Second)
	assert.False(t, mr.Exists(ConnKey("c1")))
	assert.False(t, mr.Exists(RoomKey("R1")))
}

func TestMirror_PublishesChanges(t *testing.T) {
	m, _ := mirror(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := m.SubscribePresence(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	messages := sub.Channel()

	next := func() PresenceData {
		t.Helper()
		select {
		case msg := <-messages:
			assert.Equal(t, Channel, msg.Channel)
			var data PresenceData
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &data))
			return data
		case <-ctx.Done():
			t.Fatal("no presence event published")
			return PresenceData{}
		}
	}

	p := model.Participant{Name: "A", ParticipantID: "u1", RoomID: "R1", ConnectionID: "c1"}
	m.Joined(p)
	m.Left(p)

	joined := next()
	assert.Equal(t, EventJoin, joined.Event)
	assert.Equal(t, "c1", joined.ConnectionID)
	assert.Equal(t, "u1", joined.ParticipantID)
	assert.Equal(t, "test-server", joined.ServerID)

	left := next()
	assert.Equal(t, EventLeave, left.Event)
	assert.Equal(t, "R1", left.RoomID)
}

func TestClose_AppliesQueuedWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	m := newManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 10*time.Second, "test-server")

	m.Joined(model.Participant{Name: "A", RoomID: "R1", ConnectionID: "c1"})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.True(t, mr.Exists(ConnKey("c1")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, m.flush(ctx))
}

func TestHealth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	m, _ := mirror(t)
	assert.NoError(t, m.Health(ctx))

	assert.Error(t, unreachable(t).Health(ctx))
}

func TestDefaultTTL(t *testing.T) {
	m := unreachable(t)
	assert.Equal(t, 60*time.Second, m.ttl)
}
