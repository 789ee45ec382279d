package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatdash/auth"
	"chatdash/chatrooms"
	"chatdash/core"
	"chatdash/records"
	"chatdash/session"
	"chatdash/stores/memory"

	"github.com/sirupsen/logrus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAck_NoCallback(t *testing.T) {
	ack, args := extractAck([]any{"token", "room"})
	assert.Nil(t, ack)
	assert.Equal(t, []any{"token", "room"}, args)

	ack, args = extractAck(nil)
	assert.Nil(t, ack)
	assert.Empty(t, args)
}

func TestExtractAck_SliceCallback(t *testing.T) {
	var got []any
	var gotErr error
	cb := func(data []any, err error) {
		got, gotErr = data, err
	}

	ack, args := extractAck([]any{"token", "room", cb})
	require.NotNil(t, ack)
	assert.Equal(t, []any{"token", "room"}, args)

	ack(nil, map[string]any{"status": "ok"})
	require.NoError(t, gotErr)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"status": "ok"}, got[0])
}

func TestExtractAck_SingleArgumentCallback(t *testing.T) {
	var got any
	ack, _ := extractAck([]any{func(v any) { got = v }})
	require.NotNil(t, ack)

	ack(nil, map[string]any{"status": "ok"})
	assert.Equal(t, map[string]any{"status": "ok"}, got)

	boom := errors.New("boom")
	ack(boom, map[string]any{"status": "error"})
	assert.Equal(t, boom, got)
}

func TestMessagePayload(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	payload := messagePayload(core.Message{ID: "m1", Sender: core.SenderUser, Text: "hi", Timestamp: ts})
	assert.Equal(t, map[string]any{
		"id":        "m1",
		"sender":    "user",
		"text":      "hi",
		"timestamp": "2024-01-01T12:00:00.000Z",
	}, payload)

	payload = messagePayload(core.Message{ID: "m2", Sender: core.SenderResponder, Image: "AAAA", Timestamp: ts})
	assert.Equal(t, "AAAA", payload["image"])
	assert.NotContains(t, payload, "text")
}

func TestWindowPayload(t *testing.T) {
	sess := session.New("r1", session.Options{ReplyDelay: time.Hour, PageSize: 5, HistoryBatch: 10})
	defer sess.Close()

	payload := windowPayload(sess)
	assert.Equal(t, "r1", payload["roomId"])
	assert.Equal(t, false, payload["typing"])
	assert.Len(t, payload["messages"], 5)
}

func TestConnSwap_ClosesPreviousSession(t *testing.T) {
	c := &conn{}
	first := session.New("r1", session.Options{ReplyDelay: time.Hour, HistoryBatch: -1})
	unsubscribed := false
	c.swap("u1", first, func() { unsubscribed = true })
	assert.Same(t, first, c.current())

	second := session.New("r2", session.Options{ReplyDelay: time.Hour, HistoryBatch: -1})
	c.swap("u1", second, nil)
	assert.True(t, first.Closed())
	assert.True(t, unsubscribed)
	assert.Same(t, second, c.current())

	c.swap("", nil, nil)
	assert.True(t, second.Closed())
	assert.Nil(t, c.current())
}

func TestRespond_ValidationCode(t *testing.T) {
	var got map[string]any
	ack := ackInvoker(func(err error, payload map[string]any) { got = payload })

	respond(nil, ack, "send-message-ack", nil, core.ErrValidation)
	assert.Equal(t, "error", got["status"])
	assert.Equal(t, "validation", got["code"])

	respond(nil, ack, "send-message-ack", map[string]any{"id": "m1"}, nil)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "m1", got["id"])
}

type emitted struct {
	event string
	args  []any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(ev string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: ev, args: args})
	return nil
}

func (f *fakeEmitter) snapshot() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitted(nil), f.events...)
}

func ackRecorder() (func([]any, error), func() map[string]any) {
	var mu sync.Mutex
	var got []any
	cb := func(data []any, _ error) {
		mu.Lock()
		defer mu.Unlock()
		got = data
	}
	result := func() map[string]any {
		mu.Lock()
		defer mu.Unlock()
		if len(got) != 1 {
			return nil
		}
		payload, _ := got[0].(map[string]any)
		return payload
	}
	return cb, result
}

type chatFixture struct {
	handler *chatSocket
	out     *fakeEmitter
	tokens  *auth.Tokens
	room    core.Chatroom

	mu       sync.Mutex
	sessions []*session.Session
}

const replyDelay = 50 * time.Millisecond

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	tokens, err := auth.NewTokens("secret", time.Hour)
	require.NoError(t, err)
	repo := chatrooms.NewRepository(records.NewStore(memory.NewStore()))
	room, err := repo.Create(context.Background(), "9876543210", "General")
	require.NoError(t, err)

	f := &chatFixture{out: &fakeEmitter{}, tokens: tokens, room: room}
	deps := Deps{
		Tokens: tokens,
		Rooms:  repo,
		Open: func(roomID string) *session.Session {
			sess := session.New(roomID, session.Options{ReplyDelay: replyDelay, PageSize: 20, HistoryBatch: 50})
			f.mu.Lock()
			f.sessions = append(f.sessions, sess)
			f.mu.Unlock()
			return sess
		},
	}
	f.handler = newChatSocket(deps, f.out, logrus.WithField("socket_id", "test"))
	t.Cleanup(f.handler.disconnect)
	return f
}

func (f *chatFixture) token(t *testing.T, mobile string) string {
	t.Helper()
	token, err := f.tokens.Issue(core.User{MobileNumber: mobile})
	require.NoError(t, err)
	return token
}

func TestChatSocket_OpenSendDisconnect(t *testing.T) {
	f := newChatFixture(t)

	cb, ackPayload := ackRecorder()
	f.handler.openRoom(f.token(t, "9876543210"), f.room.ID, cb)
	window := ackPayload()
	require.NotNil(t, window)
	assert.Equal(t, "ok", window["status"])
	assert.Equal(t, f.room.ID, window["roomId"])
	assert.Equal(t, false, window["typing"])
	assert.Len(t, window["messages"], 20)

	cb, ackPayload = ackRecorder()
	f.handler.sendMessage("hello", cb)
	sent := ackPayload()
	require.NotNil(t, sent)
	assert.Equal(t, "ok", sent["status"])
	assert.NotEmpty(t, sent["id"])

	f.handler.disconnect()
	require.Len(t, f.sessions, 1)
	assert.True(t, f.sessions[0].Closed())

	time.Sleep(3 * replyDelay)
	events := f.out.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "message", events[0].event)
	assert.Equal(t, "user", events[0].args[0].(map[string]any)["sender"])
	assert.Equal(t, "typing", events[1].event)
	assert.Equal(t, []any{true}, events[1].args)
	assert.Len(t, f.sessions[0].Messages(), 21)
}

func TestChatSocket_ReplyArrivesWhileOpen(t *testing.T) {
	f := newChatFixture(t)

	f.handler.openRoom(f.token(t, "9876543210"), f.room.ID)
	f.handler.sendMessage(map[string]any{"text": "hi"})

	require.Eventually(t, func() bool {
		for _, ev := range f.out.snapshot() {
			if ev.event == "message" && ev.args[0].(map[string]any)["sender"] == "ai" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestChatSocket_Errors(t *testing.T) {
	f := newChatFixture(t)

	cb, ackPayload := ackRecorder()
	f.handler.sendMessage("hello", cb)
	assert.Equal(t, "error", ackPayload()["status"])

	cb, ackPayload = ackRecorder()
	f.handler.openRoom("not-a-token", f.room.ID, cb)
	assert.Equal(t, "invalid token", ackPayload()["error"])

	cb, ackPayload = ackRecorder()
	f.handler.openRoom(f.token(t, "1111111111"), f.room.ID, cb)
	assert.Equal(t, "chatroom not found", ackPayload()["error"])

	f.handler.openRoom(f.token(t, "9876543210"), f.room.ID)
	cb, ackPayload = ackRecorder()
	f.handler.sendMessage("   ", cb)
	assert.Equal(t, "validation", ackPayload()["code"])

	cb, ackPayload = ackRecorder()
	f.handler.loadOlder(cb)
	assert.Equal(t, 20, ackPayload()["added"])
	assert.Len(t, ackPayload()["messages"], 40)

	cb, ackPayload = ackRecorder()
	f.handler.closeRoom(cb)
	assert.Equal(t, "ok", ackPayload()["status"])
	assert.True(t, f.sessions[0].Closed())
}

func TestChatSocket_EmitsAckEventWithoutCallback(t *testing.T) {
	f := newChatFixture(t)

	f.handler.loadOlder()
	events := f.out.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "load-older-ack", events[0].event)
	assert.Equal(t, "error", events[0].args[0].(map[string]any)["status"])
}
