package websocket

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"chatdash/auth"
	"chatdash/chatrooms"
	"chatdash/core"
	"chatdash/session"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type ackInvoker func(err error, payload map[string]any)

// Deps are the collaborators of the chat socket server.
type Deps struct {
	Tokens *auth.Tokens
	Rooms  *chatrooms.Repository
	// Open creates the message session for a room.
	Open func(roomID string) *session.Session
}

// conn is the per-socket state: at most one open message session.
type conn struct {
	mu          sync.Mutex
	userID      string
	sess        *session.Session
	unsubscribe func()
}

func (c *conn) swap(userID string, sess *session.Session, unsubscribe func()) {
	c.mu.Lock()
	prev, prevUnsub := c.sess, c.unsubscribe
	c.userID, c.sess, c.unsubscribe = userID, sess, unsubscribe
	c.mu.Unlock()

	if prevUnsub != nil {
		prevUnsub()
	}
	if prev != nil {
		prev.Close()
	}
}

func (c *conn) current() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// emitter is the part of a Socket.IO socket the chat handlers write to.
type emitter interface {
	Emit(ev string, args ...any) error
}

// chatSocket handles the chat events of one connected socket.
type chatSocket struct {
	deps Deps
	out  emitter
	conn conn
	log  *logrus.Entry
}

func newChatSocket(deps Deps, out emitter, log *logrus.Entry) *chatSocket {
	return &chatSocket{deps: deps, out: out, log: log}
}

// SetupSocketIO builds the Socket.IO server that carries message sessions.
func SetupSocketIO(deps Deps) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h := newChatSocket(deps, socket, logrus.WithField("socket_id", socket.Id()))
		h.log.Debug("Socket connected")

		//nolint:errcheck
		socket.On("open-room", h.openRoom)
		//nolint:errcheck
		socket.On("send-message", h.sendMessage)
		//nolint:errcheck
		socket.On("load-older", h.loadOlder)
		//nolint:errcheck
		socket.On("close-room", h.closeRoom)

		socket.On("disconnect", func(...any) {
			h.disconnect()
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

func (h *chatSocket) openRoom(datas ...any) {
	ack, args := extractAck(datas)
	if len(args) < 2 {
		respond(h.out, ack, "open-room-ack", nil, fmt.Errorf("token and room id are required"))
		return
	}
	token, _ := args[0].(string)
	roomID, _ := args[1].(string)

	claims, err := h.deps.Tokens.Parse(token)
	if err != nil {
		respond(h.out, ack, "open-room-ack", nil, fmt.Errorf("invalid token"))
		return
	}
	room, err := h.deps.Rooms.Get(context.Background(), roomID)
	if err != nil || room.UserID != claims.Subject {
		respond(h.out, ack, "open-room-ack", nil, fmt.Errorf("chatroom not found"))
		return
	}

	sess := h.deps.Open(room.ID)
	unsubscribe := sess.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.EventMessage:
			_ = h.out.Emit("message", messagePayload(ev.Message))
		case session.EventTyping:
			_ = h.out.Emit("typing", ev.Typing)
		}
	})
	h.conn.swap(claims.Subject, sess, unsubscribe)
	h.log.WithFields(logrus.Fields{"room_id": room.ID, "user_id": claims.Subject}).Info("Chatroom opened")

	respond(h.out, ack, "open-room-ack", windowPayload(sess), nil)
}

func (h *chatSocket) sendMessage(datas ...any) {
	ack, args := extractAck(datas)
	sess := h.conn.current()
	if sess == nil {
		respond(h.out, ack, "send-message-ack", nil, core.ErrSessionClosed)
		return
	}

	var text, image string
	if len(args) > 0 {
		switch v := args[0].(type) {
		case string:
			text = v
		case map[string]any:
			text, _ = v["text"].(string)
			image, _ = v["image"].(string)
		}
	}

	msg, err := sess.Send(text, image)
	if err != nil {
		respond(h.out, ack, "send-message-ack", nil, err)
		return
	}
	respond(h.out, ack, "send-message-ack", map[string]any{"id": msg.ID}, nil)
}

func (h *chatSocket) loadOlder(datas ...any) {
	ack, _ := extractAck(datas)
	sess := h.conn.current()
	if sess == nil {
		respond(h.out, ack, "load-older-ack", nil, core.ErrSessionClosed)
		return
	}
	added := sess.LoadOlder()
	payload := windowPayload(sess)
	payload["added"] = added
	respond(h.out, ack, "load-older-ack", payload, nil)
}

func (h *chatSocket) closeRoom(datas ...any) {
	ack, _ := extractAck(datas)
	h.conn.swap("", nil, nil)
	respond(h.out, ack, "close-room-ack", map[string]any{}, nil)
}

// disconnect closes the open session so a pending reply is never delivered.
func (h *chatSocket) disconnect() {
	h.conn.swap("", nil, nil)
	h.log.Debug("Socket disconnected")
}

func messagePayload(msg core.Message) map[string]any {
	payload := map[string]any{
		"id":        msg.ID,
		"sender":    string(msg.Sender),
		"timestamp": msg.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}
	if msg.Image != "" {
		payload["image"] = msg.Image
	}
	return payload
}

func windowPayload(sess *session.Session) map[string]any {
	msgs := sess.Messages()
	list := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		list = append(list, messagePayload(msg))
	}
	return map[string]any{
		"roomId":   sess.RoomID(),
		"messages": list,
		"typing":   sess.Typing(),
	}
}

func respond(out emitter, ack ackInvoker, event string, payload map[string]any, err error) {
	if payload == nil {
		payload = map[string]any{}
	}
	if err != nil {
		payload["status"] = "error"
		payload["error"] = err.Error()
		if errors.Is(err, core.ErrValidation) {
			payload["code"] = "validation"
		}
	} else {
		payload["status"] = "ok"
	}

	if ack != nil {
		ack(err, payload)
		return
	}
	_ = out.Emit(event, payload)
}

// extractAck splits a trailing acknowledgement callback off the event arguments.
// Socket.IO hands handlers a func([]any, error) whose slice becomes the ack
// packet, so the payload goes in that slice.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	last := datas[len(datas)-1]
	if fn, ok := last.(func([]any, error)); ok {
		return func(err error, payload map[string]any) {
			fn([]any{payload}, err)
		}, datas[:len(datas)-1]
	}

	candidate := reflect.ValueOf(last)
	if !candidate.IsValid() || candidate.Kind() != reflect.Func {
		return nil, datas
	}

	typ := candidate.Type()
	ack := func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var value any
			switch {
			case typ.NumIn() == 1 && err != nil:
				value = err
			case typ.NumIn() == 1:
				value = payload
			case i == 0 && typ.In(0).Kind() == reflect.Slice:
				value = payload
			case i == 0:
				value = err
			case i == 1 && typ.In(0).Kind() == reflect.Slice:
				value = err
			case i == 1:
				value = payload
			}
			args[i] = coerceValue(value, typ.In(i))
		}
		candidate.Call(args)
	}
	return ack, datas[:len(datas)-1]
}

func coerceValue(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.Slice && target.Elem().Kind() == reflect.Interface:
		// Acknowledgement callbacks of the form func([]any, error).
		return reflect.ValueOf([]any{value})
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	}
	return reflect.Zero(target)
}
