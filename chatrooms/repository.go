package chatrooms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatdash/core"
	"chatdash/records"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	// Collection is the storage key holding every chatroom.
	Collection = "chatrooms"
	// IDField is the identifier field of a chatroom record.
	IDField = "id"

	ownerField = "userId"
	titleField = "title"
)

// Patch lists the chatroom fields a caller may change. Nil fields are left alone.
type Patch struct {
	Title *string `json:"title,omitempty"`
}

// Repository is the typed view over the chatrooms collection. It also keeps an
// in-memory mirror of each user's rooms, loaded by List and updated only after
// the record store confirms a write.
type Repository struct {
	store *records.Store
	newID func() string
	now   func() time.Time

	mu     sync.RWMutex
	mirror map[string][]core.Chatroom
}

// NewRepository creates a chatroom repository on top of store.
func NewRepository(store *records.Store) *Repository {
	return &Repository{
		store:  store,
		newID:  func() string { return ulid.Make().String() },
		now:    time.Now,
		mirror: make(map[string][]core.Chatroom),
	}
}

// List returns the rooms owned by userID in storage order.
func (r *Repository) List(ctx context.Context, userID string) ([]core.Chatroom, error) {
	result, err := r.store.Read(ctx, Collection, nil)
	if err != nil {
		return nil, err
	}

	rooms := []core.Chatroom{}
	for _, rec := range result.All() {
		if owner, _ := rec[ownerField].(string); owner != userID {
			continue
		}
		room, err := fromRecord(rec)
		if err != nil {
			logrus.WithError(err).WithField("record", rec).Warn("Skipping malformed chatroom record")
			continue
		}
		rooms = append(rooms, room)
	}

	r.mu.Lock()
	r.mirror[userID] = append([]core.Chatroom(nil), rooms...)
	r.mu.Unlock()

	logrus.WithField("user_id", userID).Debugf("Listed %d chatrooms", len(rooms))
	return rooms, nil
}

// Get returns a single room by identifier.
func (r *Repository) Get(ctx context.Context, roomID string) (core.Chatroom, error) {
	result, err := r.store.Read(ctx, Collection, &records.Filter{Field: IDField, Value: roomID})
	if err != nil {
		return core.Chatroom{}, err
	}

	switch result.Cardinality {
	case records.None:
		return core.Chatroom{}, fmt.Errorf("chatroom %s: %w", roomID, core.ErrNotFound)
	case records.Many:
		logrus.WithField("room_id", roomID).Warn("Multiple chatrooms share one identifier, using the first")
	}
	return fromRecord(result.Records[0])
}

// Create stores a new room titled title for userID. An identifier collision is
// retried once with a fresh identifier.
func (r *Repository) Create(ctx context.Context, userID, title string) (core.Chatroom, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.Chatroom{}, fmt.Errorf("%w: title is required", core.ErrValidation)
	}
	if userID == "" {
		return core.Chatroom{}, fmt.Errorf("%w: user id is required", core.ErrValidation)
	}

	log := logrus.WithField("user_id", userID)
	for attempt := 0; attempt < 2; attempt++ {
		room := core.Chatroom{
			ID:        r.newID(),
			UserID:    userID,
			Title:     title,
			CreatedAt: r.now().UTC(),
		}
		rec, err := toRecord(room)
		if err != nil {
			return core.Chatroom{}, err
		}

		outcome, err := r.store.Create(ctx, Collection, rec, IDField)
		if err != nil {
			return core.Chatroom{}, err
		}
		if outcome.Status == records.StatusConflict {
			log.WithField("room_id", room.ID).Warn("Chatroom identifier collision, regenerating")
			continue
		}

		// Only a mirror already loaded by List is extended; otherwise it would
		// hold just the rooms created since.
		r.mu.Lock()
		if rooms, ok := r.mirror[userID]; ok {
			r.mirror[userID] = append(rooms, room)
		}
		r.mu.Unlock()

		log.WithField("room_id", room.ID).Info("Chatroom created")
		return room, nil
	}
	return core.Chatroom{}, fmt.Errorf("chatroom identifier collided twice: %w", core.ErrConflict)
}

// Update applies patch to the room identified by roomID.
func (r *Repository) Update(ctx context.Context, roomID string, patch Patch) error {
	fields := core.Record{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return fmt.Errorf("%w: title must not be empty", core.ErrValidation)
		}
		fields[titleField] = title
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: nothing to update", core.ErrValidation)
	}

	outcome, err := r.store.Update(ctx, Collection, IDField, roomID, fields)
	if err != nil {
		return err
	}
	if outcome.Status == records.StatusNotFound {
		return fmt.Errorf("chatroom %s: %w", roomID, core.ErrNotFound)
	}

	r.mu.Lock()
	for owner, rooms := range r.mirror {
		for i := range rooms {
			if rooms[i].ID == roomID {
				rooms[i].Title = fields[titleField].(string)
			}
		}
		r.mirror[owner] = rooms
	}
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": roomID, "matched": outcome.Matched}).Info("Chatroom updated")
	return nil
}

// Delete removes the room identified by roomID.
func (r *Repository) Delete(ctx context.Context, roomID string) error {
	outcome, err := r.store.Delete(ctx, Collection, IDField, roomID)
	if err != nil {
		return err
	}
	if outcome.Status == records.StatusNotFound {
		return fmt.Errorf("chatroom %s: %w", roomID, core.ErrNotFound)
	}

	r.mu.Lock()
	for owner, rooms := range r.mirror {
		kept := rooms[:0]
		for _, room := range rooms {
			if room.ID != roomID {
				kept = append(kept, room)
			}
		}
		r.mirror[owner] = kept
	}
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{"room_id": roomID, "matched": outcome.Matched}).Info("Chatroom deleted")
	return nil
}

// Mirror returns a copy of the in-memory rooms known for userID.
func (r *Repository) Mirror(userID string) []core.Chatroom {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.Chatroom{}, r.mirror[userID]...)
}

func toRecord(room core.Chatroom) (core.Record, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, err
	}
	rec := core.Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func fromRecord(rec core.Record) (core.Chatroom, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return core.Chatroom{}, err
	}
	var room core.Chatroom
	if err := json.Unmarshal(data, &room); err != nil {
		return core.Chatroom{}, fmt.Errorf("decode chatroom: %w", err)
	}
	return room, nil
}
