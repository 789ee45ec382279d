package rooms

import (
	"context"
	"errors"
	"net/http"

	"chatdash/chatrooms"
	"chatdash/core"
	"chatdash/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type createRequest struct {
	Title string `json:"title"`
}

func HandleListChatrooms(repo *chatrooms.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		rooms, err := repo.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list chatrooms")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "Failed to list chatrooms"})
			return
		}

		render.JSON(w, r, rooms)
	}
}

func HandleCreateChatroom(repo *chatrooms.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		var in createRequest
		if err := render.DecodeJSON(r.Body, &in); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}

		room, err := repo.Create(r.Context(), claims.Subject, in.Title)
		if err != nil {
			writeError(w, r, err, "Failed to create chatroom")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, room)
	}
}

func HandleUpdateChatroom(repo *chatrooms.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		roomID := chi.URLParam(r, "id")
		if err := checkOwner(r.Context(), repo, roomID, claims.Subject); err != nil {
			writeError(w, r, err, "Failed to update chatroom")
			return
		}

		var patch chatrooms.Patch
		if err := render.DecodeJSON(r.Body, &patch); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}

		if err := repo.Update(r.Context(), roomID, patch); err != nil {
			writeError(w, r, err, "Failed to update chatroom")
			return
		}

		room, err := repo.Get(r.Context(), roomID)
		if err != nil {
			writeError(w, r, err, "Failed to update chatroom")
			return
		}
		render.JSON(w, r, room)
	}
}

func HandleDeleteChatroom(repo *chatrooms.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		roomID := chi.URLParam(r, "id")
		if err := checkOwner(r.Context(), repo, roomID, claims.Subject); err != nil {
			writeError(w, r, err, "Failed to delete chatroom")
			return
		}

		if err := repo.Delete(r.Context(), roomID); err != nil {
			writeError(w, r, err, "Failed to delete chatroom")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// checkOwner hides rooms owned by other users behind core.ErrNotFound.
func checkOwner(ctx context.Context, repo *chatrooms.Repository, roomID, userID string) error {
	room, err := repo.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.UserID != userID {
		return core.ErrNotFound
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, core.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrNotFound):
		status, msg = http.StatusNotFound, "Chatroom not found"
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
	}

	logrus.WithFields(logrus.Fields{
		"error":  err,
		"status": status,
	}).Warn(msg)
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}
