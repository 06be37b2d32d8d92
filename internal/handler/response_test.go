package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/auth"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", apperror.ValidationFailed("title", "title is required"), http.StatusBadRequest, "validation_error"},
		{"unauthorized", apperror.Unauthorized("log in"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperror.Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{"not found", apperror.NotFound("snippet", "abc"), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflict("vote", "s1"), http.StatusConflict, "conflict"},
		{"unavailable", apperror.Unavailable("sandbox off"), http.StatusServiceUnavailable, "unavailable"},
		{"wrapped", fmt.Errorf("service: %w", apperror.NotFound("comment", "c1")), http.StatusNotFound, "not_found"},
		{"unknown", errors.New("sql: database is locked"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
		})
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.New("open /var/lib/snipshare.db: permission denied"))

	assert.NotContains(t, rr.Body.String(), "/var/lib")
}

func TestWriteErrorIncludesField(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.ValidationFailed("categories[2]", "bad tag"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "categories[2]", body.Field)
	assert.Equal(t, "bad tag", body.Message)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"title":"hi"}`, false},
		{"empty", ``, true},
		{"malformed", `{"title":`, true},
		{"unknown field", `{"title":"hi","extra":1}`, true},
		{"trailing object", `{"title":"a"}{"title":"b"}`, true},
		{"too large", `{"title":"` + strings.Repeat("x", maxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			var dst payload
			err := decodeJSON(rr, req, &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "hi", dst.Title)
				return
			}
			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "body", appErr.Field)
		})
	}
}

func TestPagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&offset=10", nil)
	limit, offset, err := pagination(req)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)
	assert.Equal(t, 10, offset)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	limit, offset, err = pagination(req)
	require.NoError(t, err)
	assert.Zero(t, limit)
	assert.Zero(t, offset)

	req = httptest.NewRequest(http.MethodGet, "/?limit=ten", nil)
	_, _, err = pagination(req)
	require.ErrorIs(t, err, apperror.ErrValidation)
}

func TestVoterFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "ip:203.0.113.9", voterFrom(req).Key())

	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1"}))
	assert.Equal(t, "user:u1", voterFrom(req).Key())
	assert.Equal(t, "u1", actorFrom(req).UserID)
}

func TestClientIPWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "2001:db8::1"
	assert.Equal(t, "2001:db8::1", clientIP(req))
}

func TestUnavailable(t *testing.T) {
	rr := httptest.NewRecorder()
	Unavailable("sign-in is off")(rr, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "sign-in is off")
}
