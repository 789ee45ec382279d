package account

import (
	"errors"
	"net/http"

	"chatdash/auth"
	"chatdash/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type signInRequest struct {
	MobileNumber string `json:"mobileNumber"`
}

// SignInResponse carries the session token and the signed-in user.
type SignInResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

// HandleRegister creates a user from the sign-up form.
func HandleRegister(directory *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in auth.RegisterInput
		if err := render.DecodeJSON(r.Body, &in); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}

		user, err := directory.Register(r.Context(), in)
		if err != nil {
			status, msg := errorStatus(err)
			if status == http.StatusConflict {
				msg = "User already exists"
			}
			logrus.WithFields(logrus.Fields{
				"error":        err,
				"mobileNumber": in.MobileNumber,
			}).Warn("Failed to register user")
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, user)
	}
}

// HandleSignIn looks up a user by mobile number and returns a session token.
func HandleSignIn(directory *auth.Directory, tokens *auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in signInRequest
		if err := render.DecodeJSON(r.Body, &in); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}

		user, err := directory.Lookup(r.Context(), in.MobileNumber)
		if err != nil {
			status, msg := errorStatus(err)
			if status == http.StatusNotFound {
				msg = "User does not exist"
			}
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		token, err := tokens.Issue(user)
		if err != nil {
			logrus.WithError(err).Error("Failed to sign session token")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create session"})
			return
		}

		render.JSON(w, r, SignInResponse{Token: token, User: user})
	}
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		logrus.WithError(err).Error("Storage failure")
		return http.StatusServiceUnavailable, "Storage unavailable"
	}
}
