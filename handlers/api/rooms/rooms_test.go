package rooms

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatdash/auth"
	"chatdash/chatrooms"
	"chatdash/core"
	"chatdash/middleware"
	"chatdash/records"
	"chatdash/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv    *httptest.Server
	tokens *auth.Tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokens("secret", time.Hour)
	require.NoError(t, err)
	repo := chatrooms.NewRepository(records.NewStore(memory.NewStore()))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(tokens))
		r.Get("/api/chatrooms", HandleListChatrooms(repo))
		r.Post("/api/chatrooms", HandleCreateChatroom(repo))
		r.Patch("/api/chatrooms/{id}", HandleUpdateChatroom(repo))
		r.Delete("/api/chatrooms/{id}", HandleDeleteChatroom(repo))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, tokens: tokens}
}

func (f *fixture) do(t *testing.T, user, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	token, err := f.tokens.Issue(core.User{MobileNumber: user})
	require.NoError(t, err)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestChatroomLifecycle(t *testing.T) {
	f := newFixture(t)
	const owner = "9876543210"

	resp, body := f.do(t, owner, http.MethodPost, "/api/chatrooms", `{"title":"General"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var room core.Chatroom
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "General", room.Title)
	assert.Equal(t, owner, room.UserID)

	resp, body = f.do(t, owner, http.MethodGet, "/api/chatrooms", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []core.Chatroom
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, room.ID, list[0].ID)

	resp, body = f.do(t, owner, http.MethodPatch, "/api/chatrooms/"+room.ID, `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var renamed core.Chatroom
	require.NoError(t, json.Unmarshal(body, &renamed))
	assert.Equal(t, "Renamed", renamed.Title)
	assert.Equal(t, room.CreatedAt, renamed.CreatedAt)

	resp, _ = f.do(t, owner, http.MethodDelete, "/api/chatrooms/"+room.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = f.do(t, owner, http.MethodGet, "/api/chatrooms", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestOtherUsersRoomsAreHidden(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "1111111111", http.MethodPost, "/api/chatrooms", `{"title":"Private"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room core.Chatroom
	require.NoError(t, json.Unmarshal(body, &room))

	resp, _ = f.do(t, "2222222222", http.MethodPatch, "/api/chatrooms/"+room.ID, `{"title":"Mine now"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, "2222222222", http.MethodDelete, "/api/chatrooms/"+room.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, "2222222222", http.MethodGet, "/api/chatrooms", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestCreateAndRenameValidation(t *testing.T) {
	f := newFixture(t)
	const owner = "9876543210"

	resp, _ := f.do(t, owner, http.MethodPost, "/api/chatrooms", `{"title":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, owner, http.MethodPost, "/api/chatrooms", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, owner, http.MethodPost, "/api/chatrooms", `{"title":"General"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room core.Chatroom
	require.NoError(t, json.Unmarshal(body, &room))

	resp, _ = f.do(t, owner, http.MethodPatch, "/api/chatrooms/"+room.ID, `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, owner, http.MethodPatch, "/api/chatrooms/missing", `{"title":"X"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequiresToken(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/chatrooms")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
