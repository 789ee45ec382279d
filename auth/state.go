package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"chatdash/core"

	"github.com/sirupsen/logrus"
)

// SessionKey is the storage key mirroring the signed-in user. The prefix keeps it
// apart from record collections sharing the same backend.
const SessionKey = "session.currentUser"

// State holds the signed-in user for the process. The user is mirrored to a
// session backend so a later process can restore it.
type State struct {
	directory *Directory
	mirror    core.Backend

	mu      sync.RWMutex
	current *core.User
}

// NewState creates an empty (signed-out) state. mirror may be nil.
func NewState(directory *Directory, mirror core.Backend) *State {
	return &State{directory: directory, mirror: mirror}
}

// Current returns the signed-in user, if any.
func (s *State) Current() (core.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return core.User{}, false
	}
	return *s.current, true
}

// SignIn looks up mobile in the directory and makes that user current.
func (s *State) SignIn(ctx context.Context, mobile string) (core.User, error) {
	user, err := s.directory.Lookup(ctx, mobile)
	if err != nil {
		return core.User{}, err
	}

	if s.mirror != nil {
		data, err := json.Marshal(user)
		if err != nil {
			return core.User{}, err
		}
		if err := s.mirror.Save(ctx, SessionKey, data); err != nil {
			return core.User{}, fmt.Errorf("%w: mirror session: %v", core.ErrStorageUnavailable, err)
		}
	}

	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()

	logrus.WithField("mobile_number", user.MobileNumber).Info("User signed in")
	return user, nil
}

// SignOut clears the current user and the mirrored session copy.
func (s *State) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, SessionKey); err != nil {
			return fmt.Errorf("%w: clear session: %v", core.ErrStorageUnavailable, err)
		}
	}
	logrus.Info("User signed out")
	return nil
}

// Restore reloads the current user from the session mirror. It reports whether a
// user was restored.
func (s *State) Restore(ctx context.Context) (bool, error) {
	if s.mirror == nil {
		return false, nil
	}
	data, ok, err := s.mirror.Load(ctx, SessionKey)
	if err != nil {
		return false, fmt.Errorf("%w: load session: %v", core.ErrStorageUnavailable, err)
	}
	if !ok {
		return false, nil
	}

	var user core.User
	if err := json.Unmarshal(data, &user); err != nil || user.MobileNumber == "" {
		logrus.WithError(err).Warn("Discarding unreadable session mirror")
		return false, s.mirror.Remove(ctx, SessionKey)
	}

	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()
	return true, nil
}
