package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chatdash/auth"
	"chatdash/chatrooms"
	"chatdash/config"
	"chatdash/core"
	"chatdash/records"
	"chatdash/responder"
	"chatdash/session"
	"chatdash/stores"

	"github.com/sirupsen/logrus"
)

// app wires the storage backend to the domain services.
type app struct {
	cfg       *config.Config
	backend   core.Backend
	store     *records.Store
	directory *auth.Directory
	state     *auth.State
	rooms     *chatrooms.Repository
	responder session.Responder
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	backend, err := stores.GetStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := records.NewStore(backend)
	directory := auth.NewDirectory(store)
	a := &app{
		cfg:       cfg,
		backend:   backend,
		store:     store,
		directory: directory,
		state:     auth.NewState(directory, backend),
		rooms:     chatrooms.NewRepository(store),
		responder: newResponder(cfg.OpenAI),
	}

	if restored, err := a.state.Restore(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to restore signed-in user")
	} else if restored {
		user, _ := a.state.Current()
		logrus.WithField("mobile_number", user.MobileNumber).Debug("Restored signed-in user")
	}
	return a, nil
}

func newResponder(cfg config.OpenAIConfig) session.Responder {
	if cfg.APIKey == "" {
		return responder.Canned{}
	}
	logrus.WithFields(logrus.Fields{"base_url": cfg.BaseURL, "model": cfg.Model}).Info("Using completion API responder")
	return responder.NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
}

func (a *app) sessionOptions() session.Options {
	return session.Options{
		ReplyDelay:   a.cfg.Chat.ReplyDelay,
		PageSize:     a.cfg.Chat.PageSize,
		HistoryBatch: a.historyBatch(),
		Responder:    a.responder,
	}
}

// historyBatch maps the configured zero ("no simulated history") onto the session
// convention, where zero means the default.
func (a *app) historyBatch() int {
	if a.cfg.Chat.HistoryBatch == 0 {
		return -1
	}
	return a.cfg.Chat.HistoryBatch
}

// currentUser returns the signed-in user or an error telling the caller to sign in.
func (a *app) currentUser() (core.User, error) {
	user, ok := a.state.Current()
	if !ok {
		return core.User{}, errors.New("not signed in, run `chatdash signin <mobile>` first")
	}
	return user, nil
}

// ownedRoom loads roomID and checks that it belongs to userID.
func (a *app) ownedRoom(ctx context.Context, roomID, userID string) (core.Chatroom, error) {
	room, err := a.rooms.Get(ctx, roomID)
	if err != nil {
		return core.Chatroom{}, err
	}
	if room.UserID != userID {
		return core.Chatroom{}, fmt.Errorf("chatroom %s: %w", roomID, core.ErrNotFound)
	}
	return room, nil
}

func (a *app) Close() error {
	if closer, ok := a.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
