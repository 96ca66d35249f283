package identity

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gatekeeper/pkg/domain-errors"
)

func TestHeaderProvider(t *testing.T) {
	p := NewHeaderProvider()

	t.Run("all headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/demo/english", nil)
		r.Header.Set(HeaderUserID, "u-42")
		r.Header.Set(HeaderUserRole, " junior_intern ")
		r.Header.Set(HeaderDepartment, "Marketing")

		id, err := p.Identify(r)
		require.NoError(t, err)
		assert.Equal(t, Identity{UserID: "u-42", Role: "junior_intern", Department: "Marketing"}, id)
	})

	t.Run("department defaults", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderUserID, "u-1")
		r.Header.Set(HeaderUserRole, "admin")

		id, err := p.Identify(r)
		require.NoError(t, err)
		assert.Equal(t, DefaultDepartment, id.Department)
	})

	t.Run("missing user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderUserRole, "admin")

		_, err := p.Identify(r)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing role", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderUserID, "u-1")

		_, err := p.Identify(r)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestJWTProvider(t *testing.T) {
	p := NewJWTProvider("test-signing-key", "gatekeeper-test")
	want := Identity{UserID: "u-7", Role: "junior_intern", Department: "Sales"}

	t.Run("round trip", func(t *testing.T) {
		token, err := p.IssueToken(want, time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		got, err := p.Identify(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := p.IssueToken(want, -time.Hour)
		require.NoError(t, err)

		_, err = p.ValidateToken(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
	})

	t.Run("foreign signing key", func(t *testing.T) {
		other := NewJWTProvider("another-key", "gatekeeper-test")
		token, err := other.IssueToken(want, time.Hour)
		require.NoError(t, err)

		_, err = p.ValidateToken(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("missing bearer", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := p.Identify(r)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var seen Identity
	h := Middleware(NewHeaderProvider(), logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		role, ok := RoleFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "admin", role)
	}))

	t.Run("identity stored in context", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderUserID, "root")
		r.Header.Set(HeaderUserRole, "admin")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "root", seen.UserID)
	})

	t.Run("rejects anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
