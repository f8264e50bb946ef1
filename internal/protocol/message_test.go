package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-board/internal/model"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    string
	}{
		{name: "valid", input: `{"type":"chatSend","payload":{"text":"hi"}}`, want: EventChatSend},
		{name: "no payload", input: `{"type":"ping"}`, want: EventPing},
		{name: "not json", input: `hello`, wantErr: true},
		{name: "missing type", input: `{"payload":{}}`, wantErr: true},
		{name: "array", input: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Type)
		})
	}
}

func TestDecodeJoin(t *testing.T) {
	req, err := DecodeJoin(json.RawMessage(`{"name":"A","participantId":"u1","roomId":" R1 ","isHost":true,"isPresenter":true}`))
	require.NoError(t, err)
	assert.Equal(t, JoinRequest{Name: "A", ParticipantID: "u1", RoomID: "R1", IsHost: true, IsPresenter: true}, req)

	_, err = DecodeJoin(json.RawMessage(`{"name":"A"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeJoin(json.RawMessage(`"R1"`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeJoin(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeSnapshot(t *testing.T) {
	got, err := DecodeSnapshot(json.RawMessage(`"data:image/png;base64,AAA"`))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAA", got)

	got, err = DecodeSnapshot(json.RawMessage(`{"snapshot":"S1"}`))
	require.NoError(t, err)
	assert.Equal(t, "S1", got)

	for _, raw := range []string{`42`, `null`, `{}`, `""`, `"  "`, `{"snapshot":null}`, `{"snapshot":""}`, ``} {
		_, err = DecodeSnapshot(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}

func TestDecodeDisplayMode(t *testing.T) {
	mode, err := DecodeDisplayMode(json.RawMessage(`true`))
	require.NoError(t, err)
	assert.True(t, mode)

	_, err = DecodeDisplayMode(json.RawMessage(`"dark"`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeChat(t *testing.T) {
	msg, err := DecodeChat(json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)

	_, err = DecodeChat(json.RawMessage(`{"text":"  "}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeChat(json.RawMessage(`"hello"`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeElement(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "untyped text record", input: `{"text":"hi","x":10,"y":20}`},
		{name: "typed text", input: `{"type":"text","text":"hi","offsetX":1,"offsetY":2,"stroke":"red"}`},
		{name: "shapes travel as snapshots", input: `{"type":"rect","width":3}`, wantErr: true},
		{name: "unknown kind", input: `{"type":"spray"}`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
		{name: "not an object", input: `"hi"`, wantErr: true},
		{name: "empty", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeElement(json.RawMessage(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(raw), "element bytes are relayed untouched")
		})
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(EventChatBroadcast, ChatBroadcast{Text: "hi", SenderName: "B"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chatBroadcast","payload":{"text":"hi","senderName":"B"}}`, string(data))

	data, err = Encode(EventElementBroadcast, json.RawMessage(`{"text":"hi","x":10,"y":20}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"elementBroadcast","payload":{"text":"hi","x":10,"y":20}}`, string(data))

	data, err = Encode(EventPong, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))

	data, err = Encode(EventJoinConfirmed, JoinConfirmed{Success: true, Roster: []model.Participant{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"joinConfirmed","payload":{"success":true,"roster":[]}}`, string(data))
}
