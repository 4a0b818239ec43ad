package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewService("secret", time.Hour)

	res, err := s.StartSession(context.Background(), &SessionRequest{Username: "  Alice "})
	require.NoError(t, err)
	assert.Equal(t, "Alice", res.Username)
	assert.NotEmpty(t, res.ID)

	id, name, err := s.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.ID, id)
	assert.Equal(t, "Alice", name)
}

func TestValidateTokenRejects(t *testing.T) {
	s := NewService("secret", time.Hour)
	res, err := s.StartSession(context.Background(), &SessionRequest{Username: "Bob"})
	require.NoError(t, err)

	_, _, err = NewService("other", time.Hour).ValidateToken(res.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewService("secret", -time.Minute).StartSession(context.Background(), &SessionRequest{Username: "Bob"})
	require.NoError(t, err)
	_, _, err = s.ValidateToken(expired.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = s.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStartSessionValidatesName(t *testing.T) {
	s := NewService("secret", time.Hour)
	_, err := s.StartSession(context.Background(), &SessionRequest{Username: "   "})
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = s.StartSession(context.Background(), &SessionRequest{Username: strings.Repeat("a", 25)})
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestCreateSessionHandler(t *testing.T) {
	h := NewHandler(NewService("secret", time.Hour))

	rec := httptest.NewRecorder()
	h.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"username":"Carol"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var res SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "Carol", res.Username)
	assert.NotEmpty(t, res.AccessToken)

	rec = httptest.NewRecorder()
	h.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{"username":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
