package middleware

import "github.com/labstack/echo/v4"

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated attendee id set by JWTAuth, or "" for
// anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(userIDKey).(string)
	return s
}

// Role returns the role claim set by JWTAuth, or "".
func Role(c echo.Context) string {
	s, _ := c.Get(roleKey).(string)
	return s
}
