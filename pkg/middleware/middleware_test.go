package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (auth.Principal, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(auth.Principal), args.Error(1)
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", p.UserID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		v := new(mockVerifier)
		v.On("Verify", mock.Anything, "good").Return(auth.Principal{UserID: "u1", Roles: []auth.Role{auth.RoleClient}}, nil)

		req := httptest.NewRequest(http.MethodGet, "/me/balance", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		Authenticate(v)(okHandler(t)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "u1", rr.Header().Get("X-User"))
		v.AssertExpectations(t)
	})

	t.Run("Missing Header", func(t *testing.T) {
		v := new(mockVerifier)
		rr := httptest.NewRecorder()
		Authenticate(v)(okHandler(t)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me/balance", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), `"code":"UNAUTHORIZED"`)
		v.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		v := new(mockVerifier)
		v.On("Verify", mock.Anything, "bad").Return(auth.Principal{}, errors.New("token is expired"))

		req := httptest.NewRequest(http.MethodGet, "/me/balance", nil)
		req.Header.Set("Authorization", "bearer bad")
		rr := httptest.NewRecorder()
		Authenticate(v)(okHandler(t)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "token is expired")
	})
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(auth.RoleCashier, auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("Allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "c", Roles: []auth.Role{auth.RoleAdmin}}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("Forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "c", Roles: []auth.Role{auth.RoleClient}}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), `"code":"FORBIDDEN"`)
	})

	t.Run("No Principal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	v := new(mockVerifier)
	v.On("Verify", mock.Anything, "tok").Return(auth.Principal{UserID: "u42"}, nil)

	r := chi.NewRouter()
	r.Use(NewStructuredLogger(logger))
	r.With(Authenticate(v)).Get("/me/{thing}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/me/balance", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request rejected"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"route":"/me/{thing}"`)
	assert.Contains(t, out, `"user_id":"u42"`)
}
