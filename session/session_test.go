package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chatdash/core"
	"chatdash/responder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDelay = 50 * time.Millisecond

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type failingResponder struct{}

func (failingResponder) Reply(ctx context.Context, history []core.Message) (string, error) {
	return "", errors.New("upstream down")
}

type echoResponder struct{}

func (echoResponder) Reply(ctx context.Context, history []core.Message) (string, error) {
	return "echo: " + history[len(history)-1].Text, nil
}

func newEmptySession(opts Options) *Session {
	opts.HistoryBatch = -1
	if opts.ReplyDelay == 0 {
		opts.ReplyDelay = testDelay
	}
	return New("r1", opts)
}

func TestSend_AppendsThenReplies(t *testing.T) {
	s := newEmptySession(Options{})
	defer s.Close()

	msg, err := s.Send("hi", "")
	require.NoError(t, err)
	assert.Equal(t, core.SenderUser, msg.Sender)
	assert.Equal(t, "hi", msg.Text)
	assert.NotEmpty(t, msg.ID)

	require.Len(t, s.Messages(), 1)
	assert.True(t, s.Typing())

	require.Eventually(t, func() bool {
		return len(s.Messages()) == 2 && !s.Typing()
	}, 2*time.Second, 5*time.Millisecond)

	msgs := s.Messages()
	assert.Equal(t, core.SenderResponder, msgs[1].Sender)
	assert.Equal(t, responder.CannedReply, msgs[1].Text)
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))
}

func TestClose_BeforeDelayNeverReplies(t *testing.T) {
	s := newEmptySession(Options{})

	_, err := s.Send("hi", "")
	require.NoError(t, err)
	s.Close()

	time.Sleep(3 * testDelay)
	assert.Len(t, s.Messages(), 1)
	assert.False(t, s.Typing())
	assert.True(t, s.Closed())
}

func TestClose_IsIdempotentAndRejectsSends(t *testing.T) {
	s := newEmptySession(Options{})
	s.Close()
	s.Close()

	_, err := s.Send("hi", "")
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	assert.Equal(t, 0, s.LoadOlder())
}

func TestSend_Validation(t *testing.T) {
	s := newEmptySession(Options{})
	defer s.Close()

	_, err := s.Send("   ", "")
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Empty(t, s.Messages())

	msg, err := s.Send("", "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", msg.Image)
}

func TestSubscribe_ReceivesEventsInOrder(t *testing.T) {
	s := newEmptySession(Options{Responder: echoResponder{}})
	defer s.Close()

	rec := &recorder{}
	s.Subscribe(rec.record)

	_, err := s.Send("ping", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 4 }, 2*time.Second, 5*time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, EventMessage, events[0].Kind)
	assert.Equal(t, "ping", events[0].Message.Text)
	assert.Equal(t, Event{Kind: EventTyping, Typing: true}, events[1])
	assert.Equal(t, EventMessage, events[2].Kind)
	assert.Equal(t, "echo: ping", events[2].Message.Text)
	assert.Equal(t, Event{Kind: EventTyping, Typing: false}, events[3])
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := newEmptySession(Options{})
	defer s.Close()

	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.record)
	unsubscribe()

	_, err := s.Send("hi", "")
	require.NoError(t, err)
	assert.Empty(t, rec.snapshot())
}

func TestResponderFailure_StopsTyping(t *testing.T) {
	s := newEmptySession(Options{Responder: failingResponder{}})
	defer s.Close()

	_, err := s.Send("hi", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !s.Typing() }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, s.Messages(), 1)
}

func TestMultiplePendingReplies(t *testing.T) {
	s := newEmptySession(Options{})
	defer s.Close()

	for i := 0; i < 3; i++ {
		_, err := s.Send(fmt.Sprintf("m%d", i), "")
		require.NoError(t, err)
	}
	assert.True(t, s.Typing())

	require.Eventually(t, func() bool {
		return len(s.Messages()) == 6 && !s.Typing()
	}, 2*time.Second, 5*time.Millisecond)

	msgs := s.Messages()
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp), "messages out of order at %d", i)
	}
}

func TestTimestampsStrictlyIncreaseWithFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newEmptySession(Options{Now: func() time.Time { return frozen }})
	defer s.Close()

	first, err := s.Send("a", "")
	require.NoError(t, err)
	second, err := s.Send("b", "")
	require.NoError(t, err)
	assert.True(t, second.Timestamp.After(first.Timestamp))
}

func TestNew_SeedsSimulatedHistory(t *testing.T) {
	s := New("r1", Options{ReplyDelay: testDelay, PageSize: 20, HistoryBatch: 50})
	defer s.Close()

	msgs := s.Messages()
	require.Len(t, msgs, 20)
	assert.Equal(t, "Dummy message 31", msgs[0].Text)
	assert.Equal(t, "Dummy message 50", msgs[19].Text)
	assert.False(t, s.Typing())
	assert.Equal(t, "r1", s.RoomID())
}

func TestNew_Defaults(t *testing.T) {
	s := New("r1", Options{})
	defer s.Close()

	assert.Equal(t, DefaultReplyDelay, s.delay)
	assert.Equal(t, DefaultPageSize, s.pageSize)
	assert.Equal(t, DefaultHistoryBatch, s.historyBatch)
	assert.Len(t, s.Messages(), DefaultPageSize)
}

func TestLoadOlder(t *testing.T) {
	s := New("r1", Options{ReplyDelay: testDelay, PageSize: 20, HistoryBatch: 50})
	defer s.Close()

	assert.Equal(t, 20, s.LoadOlder())
	assert.Len(t, s.Messages(), 40)

	// 10 seeded messages remain hidden, so another batch is prepended first.
	assert.Equal(t, 20, s.LoadOlder())
	msgs := s.Messages()
	require.Len(t, msgs, 60)
	assert.Equal(t, "Older dummy message 41", msgs[0].Text)
	assert.Equal(t, "Dummy message 50", msgs[len(msgs)-1].Text)

	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].Timestamp.After(msgs[i-1].Timestamp), "history out of order at %d", i)
	}
}

func TestLoadOlder_WithoutHistory(t *testing.T) {
	s := newEmptySession(Options{PageSize: 2, ReplyDelay: time.Hour})
	defer s.Close()

	for _, text := range []string{"a", "b", "c"} {
		_, err := s.Send(text, "")
		require.NoError(t, err)
	}

	assert.Equal(t, 0, s.LoadOlder())
	assert.Len(t, s.Messages(), 3)
}
