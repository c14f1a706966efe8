package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/Skotchmaster/agro_shop/pkg/authclient"
	"github.com/Skotchmaster/agro_shop/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"

	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*authclient.RefreshResponse, error)
}

// AutoRefreshMiddleware authenticates requests by the access cookie. An
// expired access token is exchanged once through the auth service before the
// request is rejected.
type AutoRefreshMiddleware struct {
	JWTSecret  []byte
	AuthClient Refresher
}

func NewAutoRefreshMiddleware(secret []byte, authClient Refresher) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
	}
}

type authorizeFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.guard(next, nil)
}

// RequireRole admits callers whose access token carries one of roles.
func (m *AutoRefreshMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	allow := func(claims *tokens.AccessClaims) error {
		if !slices.Contains(roles, claims.Role) {
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
		return nil
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.guard(next, allow)
	}
}

func (m *AutoRefreshMiddleware) guard(next echo.HandlerFunc, authorize authorizeFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.identify(c)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(claims); err != nil {
				return err
			}
		}
		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextRole, claims.Role)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) identify(c echo.Context) (*tokens.AccessClaims, error) {
	access, err := c.Cookie(accessCookieName)
	if err != nil || access.Value == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	claims, err := tokens.AccessClaimsFromToken(access.Value, m.JWTSecret)
	switch {
	case err == nil && claims != nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired) && m.AuthClient != nil:
		return m.refresh(c, access.Value)
	default:
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}
}

func (m *AutoRefreshMiddleware) refresh(c echo.Context, staleAccess string) (*tokens.AccessClaims, error) {
	refresh, err := c.Cookie(refreshCookieName)
	if err != nil || refresh.Value == "" {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	pair, err := m.AuthClient.RefreshTokens(c.Request().Context(), refresh.Value, staleAccess)
	if err != nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
	}

	claims, err := tokens.AccessClaimsFromToken(pair.AccessToken, m.JWTSecret)
	if err != nil || claims == nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
	}

	c.SetCookie(sessionCookie(accessCookieName, pair.AccessToken, time.Unix(pair.AccessExp, 0)))
	c.SetCookie(sessionCookie(refreshCookieName, pair.RefreshToken, time.Unix(pair.RefreshExp, 0)))
	return claims, nil
}

func clearAuthCookies(c echo.Context) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		ck := sessionCookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func sessionCookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
