package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatdash/core"
	"chatdash/responder"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultReplyDelay   = 2 * time.Second
	DefaultPageSize     = 20
	DefaultHistoryBatch = 50
)

// Responder produces the text of the reply to the latest user message.
type Responder interface {
	Reply(ctx context.Context, history []core.Message) (string, error)
}

// EventKind identifies a session event.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventTyping  EventKind = "typing"
)

// Event is delivered to subscribers whenever a message is appended or the typing
// indicator changes.
type Event struct {
	Kind    EventKind
	Message core.Message
	Typing  bool
}

// Options configure a Session. Zero values fall back to the defaults, except
// HistoryBatch where a negative value disables simulated history.
type Options struct {
	ReplyDelay   time.Duration
	PageSize     int
	HistoryBatch int
	Responder    Responder
	Now          func() time.Time
}

// Session is the in-memory message log of one open chatroom. Nothing in it is
// persisted; closing the session discards pending replies.
type Session struct {
	roomID       string
	delay        time.Duration
	pageSize     int
	historyBatch int
	responder    Responder
	now          func() time.Time

	mu          sync.Mutex
	log         []core.Message
	start       int
	pending     map[int]context.CancelFunc
	nextPending int
	closed      bool
	subscribers map[int]func(Event)
	nextSub     int
}

// New opens a session for roomID.
func New(roomID string, opts Options) *Session {
	s := &Session{
		roomID:       roomID,
		delay:        opts.ReplyDelay,
		pageSize:     opts.PageSize,
		historyBatch: opts.HistoryBatch,
		responder:    opts.Responder,
		now:          opts.Now,
		pending:      make(map[int]context.CancelFunc),
		subscribers:  make(map[int]func(Event)),
	}
	if s.delay <= 0 {
		s.delay = DefaultReplyDelay
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.historyBatch == 0 {
		s.historyBatch = DefaultHistoryBatch
	}
	if s.historyBatch < 0 {
		s.historyBatch = 0
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.responder == nil {
		s.responder = responder.Canned{}
	}

	s.log = s.simulatedHistory("Dummy message", s.now().UTC().Add(-time.Duration(s.historyBatch)*time.Second))
	s.start = max(len(s.log)-s.pageSize, 0)

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"seeded":  len(s.log),
	}).Debug("Message session opened")
	return s
}

// RoomID returns the chatroom this session belongs to.
func (s *Session) RoomID() string {
	return s.roomID
}

// Send appends a user message and schedules the simulated reply. At least one of
// text and image must be non-empty.
func (s *Session) Send(text, image string) (core.Message, error) {
	if strings.TrimSpace(text) == "" && image == "" {
		return core.Message{}, fmt.Errorf("%w: message needs text or an image", core.ErrValidation)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.Message{}, core.ErrSessionClosed
	}

	msg := s.appendLocked(core.SenderUser, text, image)
	history := append([]core.Message(nil), s.log...)

	ctx, cancel := context.WithCancel(context.Background())
	id := s.nextPending
	s.nextPending++
	s.pending[id] = cancel
	subs := s.subscribersLocked()
	s.mu.Unlock()

	publish(subs, Event{Kind: EventMessage, Message: msg})
	publish(subs, Event{Kind: EventTyping, Typing: true})

	time.AfterFunc(s.delay, func() { s.reply(ctx, id, history) })

	logrus.WithFields(logrus.Fields{"room_id": s.roomID, "message_id": msg.ID}).Debug("User message appended")
	return msg, nil
}

func (s *Session) reply(ctx context.Context, id int, history []core.Message) {
	defer s.finishPending(id)

	if ctx.Err() != nil {
		return
	}

	text, err := s.responder.Reply(ctx, history)
	if err != nil {
		if ctx.Err() == nil {
			logrus.WithError(err).WithField("room_id", s.roomID).Warn("Responder failed")
		}
		return
	}

	s.mu.Lock()
	if s.closed || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	msg := s.appendLocked(core.SenderResponder, text, "")
	subs := s.subscribersLocked()
	s.mu.Unlock()

	publish(subs, Event{Kind: EventMessage, Message: msg})
}

func (s *Session) finishPending(id int) {
	s.mu.Lock()
	cancel, ok := s.pending[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	cancel()
	delete(s.pending, id)
	typing := len(s.pending) > 0
	closed := s.closed
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if !closed && !typing {
		publish(subs, Event{Kind: EventTyping, Typing: false})
	}
}

// LoadOlder widens the visible window by one page. When the window already starts
// at the beginning of the log, another batch of simulated older messages is
// prepended first. It returns how many messages became visible.
func (s *Session) LoadOlder() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	if s.start < s.pageSize && s.historyBatch > 0 {
		oldest := s.now().UTC()
		if len(s.log) > 0 {
			oldest = s.log[0].Timestamp
		}
		older := s.simulatedHistory("Older dummy message", oldest.Add(-time.Duration(s.historyBatch)*time.Second))
		s.log = append(older, s.log...)
		s.start += len(older)
	}

	before := s.start
	s.start = max(s.start-s.pageSize, 0)
	return before - s.start
}

// Messages returns the visible window in chronological order.
func (s *Session) Messages() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Message{}, s.log[s.start:]...)
}

// Typing reports whether a reply is being composed.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && len(s.pending) > 0
}

// Subscribe registers fn for session events and returns a function removing it.
// fn is called without the session lock held.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Close ends the session and cancels every pending reply. It is safe to call more
// than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, cancel := range s.pending {
		cancel()
		delete(s.pending, id)
	}
	s.subscribers = make(map[int]func(Event))

	logrus.WithField("room_id", s.roomID).Debug("Message session closed")
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// appendLocked adds a message strictly after the current last one.
func (s *Session) appendLocked(sender core.Sender, text, image string) core.Message {
	ts := s.now().UTC()
	if n := len(s.log); n > 0 && !ts.After(s.log[n-1].Timestamp) {
		ts = s.log[n-1].Timestamp.Add(time.Nanosecond)
	}
	msg := core.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Image:     image,
		Timestamp: ts,
	}
	s.log = append(s.log, msg)
	return msg
}

func (s *Session) simulatedHistory(label string, from time.Time) []core.Message {
	msgs := make([]core.Message, 0, s.historyBatch)
	for i := 0; i < s.historyBatch; i++ {
		sender := core.SenderUser
		if i%2 == 1 {
			sender = core.SenderResponder
		}
		msgs = append(msgs, core.Message{
			ID:        uuid.NewString(),
			Sender:    sender,
			Text:      fmt.Sprintf("%s %d", label, i+1),
			Timestamp: from.Add(time.Duration(i) * time.Second),
		})
	}
	return msgs
}

func (s *Session) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func publish(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
