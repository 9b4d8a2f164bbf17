package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// AccessCookieName carries the access token for console page navigation.
const AccessCookieName = "showroom_access"

// SetAccessCookie issues the access token cookie.
func SetAccessCookie(c echo.Context, token string, expiresAt time.Time, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAccessCookie removes the access token cookie.
func ClearAccessCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
