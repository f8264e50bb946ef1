package registry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-board/internal/model"
)

func participant(conn, room, name string) model.Participant {
	return model.Participant{
		Name:          name,
		ParticipantID: "p-" + name,
		RoomID:        room,
		ConnectionID:  conn,
	}
}

func names(roster []model.Participant) []string {
	out := make([]string, 0, len(roster))
	for _, p := range roster {
		out = append(out, p.Name)
	}
	return out
}

func TestRegistry_AddReturnsRoster(t *testing.T) {
	r := New()

	roster := r.Add(participant("c1", "r1", "alice"))
	assert.Equal(t, []string{"alice"}, names(roster))

	roster = r.Add(participant("c2", "r1", "bob"))
	assert.Equal(t, []string{"alice", "bob"}, names(roster))

	roster = r.Add(participant("c3", "r2", "carol"))
	assert.Equal(t, []string{"carol"}, names(roster))
}

func TestRegistry_AddOverwritesByConnection(t *testing.T) {
	tests := []struct {
		name      string
		second    model.Participant
		wantR1    []string
		wantR2    []string
		wantTotal int
	}{
		{
			name:      "same room keeps position",
			second:    participant("c1", "r1", "alice2"),
			wantR1:    []string{"alice2", "bob"},
			wantR2:    []string{},
			wantTotal: 2,
		},
		{
			name:      "other room moves connection",
			second:    participant("c1", "r2", "alice"),
			wantR1:    []string{"bob"},
			wantR2:    []string{"alice"},
			wantTotal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			r.Add(participant("c1", "r1", "alice"))
			r.Add(participant("c2", "r1", "bob"))

			r.Add(tt.second)

			assert.Equal(t, tt.wantR1, names(r.List("r1")))
			assert.Equal(t, tt.wantR2, names(r.List("r2")))
			_, total := r.Stats()
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	r.Add(participant("c1", "r1", "alice"))
	r.Add(participant("c2", "r1", "bob"))

	p, err := r.Remove("c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, []string{"bob"}, names(r.List("r1")))

	_, err = r.Remove("c1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Remove("never-joined")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Get(t *testing.T) {
	r := New()
	r.Add(participant("c1", "r1", "alice"))

	p, err := r.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", p.RoomID)

	_, err = r.Get("c2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EmptyRoomDisappears(t *testing.T) {
	r := New()
	r.Add(participant("c1", "r1", "alice"))

	rooms, _ := r.Stats()
	require.Equal(t, 1, rooms)

	_, err := r.Remove("c1")
	require.NoError(t, err)

	rooms, participants := r.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, participants)
	assert.NotNil(t, r.List("r1"))
	assert.Empty(t, r.List("r1"))
}

func TestRegistry_ListIsACopy(t *testing.T) {
	r := New()
	r.Add(participant("c1", "r1", "alice"))

	roster := r.List("r1")
	roster[0].Name = "mallory"

	assert.Equal(t, []string{"alice"}, names(r.List("r1")))
}

// Survivors of any join/leave sequence stay in their original join order.
func TestRegistry_JoinLeaveSequencesPreserveOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	conns := []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"}

	for round := 0; round < 200; round++ {
		r := New()
		var joined []string
		present := map[string]bool{}

		for step := 0; step < 30; step++ {
			conn := conns[rng.Intn(len(conns))]
			if present[conn] {
				_, err := r.Remove(conn)
				require.NoError(t, err)
				present[conn] = false
				continue
			}
			r.Add(participant(conn, "room", conn))
			present[conn] = true
			joined = append(joined, conn)
		}

		// expected: join order among survivors, using each survivor's latest join
		var want []string
		seen := map[string]bool{}
		for i := len(joined) - 1; i >= 0; i-- {
			c := joined[i]
			if present[c] && !seen[c] {
				seen[c] = true
				want = append([]string{c}, want...)
			}
		}
		if want == nil {
			want = []string{}
		}

		assert.Equal(t, want, names(r.List("room")), "round %d", round)
	}
}
