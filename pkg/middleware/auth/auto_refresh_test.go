package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/agro_shop/pkg/authclient"
	"github.com/Skotchmaster/agro_shop/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

type stubRefresher struct {
	resp *authclient.RefreshResponse
	err  error
}

func (s stubRefresher) RefreshTokens(context.Context, string, string) (*authclient.RefreshResponse, error) {
	return s.resp, s.err
}

func newCtx(t *testing.T, cookies ...*http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func token(t *testing.T, sub, role string, exp time.Duration) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(testSecret, sub, role, time.Now().Add(exp))
	require.NoError(t, err)
	return tok
}

func ok(c echo.Context) error { return c.NoContent(http.StatusOK) }

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected echo.HTTPError, got %v", err)
	return he.Code
}

func TestRequireAuth_SetsIdentity(t *testing.T) {
	userID := uuid.NewString()
	c, rec := newCtx(t, &http.Cookie{Name: "accessToken", Value: token(t, userID, tokens.RoleUser, time.Minute)})

	m := NewAutoRefreshMiddleware(testSecret, nil)
	require.NoError(t, m.RequireAuth(ok)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, c.Get(ContextUserID))
	assert.Equal(t, tokens.RoleUser, c.Get(ContextRole))
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	c, _ := newCtx(t)
	m := NewAutoRefreshMiddleware(testSecret, nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, m.RequireAuth(ok)(c)))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "admin allowed", role: tokens.RoleAdmin, want: http.StatusOK},
		{name: "seller allowed", role: tokens.RoleSeller, want: http.StatusOK},
		{name: "user forbidden", role: tokens.RoleUser, want: http.StatusForbidden},
	}

	m := NewAutoRefreshMiddleware(testSecret, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newCtx(t, &http.Cookie{Name: "accessToken", Value: token(t, uuid.NewString(), tt.role, time.Minute)})
			err := m.RequireRole(tokens.RoleAdmin, tokens.RoleSeller)(ok)(c)
			if tt.want == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			assert.Equal(t, tt.want, statusOf(t, err))
		})
	}
}

func TestRequireAuth_RefreshesExpiredToken(t *testing.T) {
	userID := uuid.NewString()
	fresh := token(t, userID, tokens.RoleUser, time.Minute)
	refresher := stubRefresher{resp: &authclient.RefreshResponse{
		AccessToken:  fresh,
		RefreshToken: "r2",
		AccessExp:    time.Now().Add(time.Minute).Unix(),
		RefreshExp:   time.Now().Add(time.Hour).Unix(),
	}}

	c, rec := newCtx(t,
		&http.Cookie{Name: "accessToken", Value: token(t, userID, tokens.RoleUser, -time.Minute)},
		&http.Cookie{Name: "refreshToken", Value: "r1"},
	)

	m := NewAutoRefreshMiddleware(testSecret, refresher)
	require.NoError(t, m.RequireAuth(ok)(c))
	assert.Equal(t, userID, c.Get(ContextUserID))
	assert.Contains(t, rec.Header().Values("Set-Cookie")[0], "accessToken="+fresh)
}

func TestRequireAuth_RefreshFailure(t *testing.T) {
	c, _ := newCtx(t,
		&http.Cookie{Name: "accessToken", Value: token(t, uuid.NewString(), tokens.RoleUser, -time.Minute)},
		&http.Cookie{Name: "refreshToken", Value: "r1"},
	)

	m := NewAutoRefreshMiddleware(testSecret, stubRefresher{err: errors.New("boom")})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, m.RequireAuth(ok)(c)))
}

func TestRequireAuth_GarbageTokenClearsCookies(t *testing.T) {
	c, rec := newCtx(t, &http.Cookie{Name: "accessToken", Value: "not-a-jwt"})

	m := NewAutoRefreshMiddleware(testSecret, stubRefresher{err: errors.New("unused")})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, m.RequireAuth(ok)(c)))

	set := rec.Header().Values("Set-Cookie")
	require.Len(t, set, 2)
	assert.Contains(t, set[0], "accessToken=;")
	assert.Contains(t, set[1], "refreshToken=;")
}
