package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"workshopportal/internal/dto"
	"workshopportal/internal/session"
)

// Sessions attaches a cookie-backed session to every request. The admin flag
// lives there, so unlocking is per browser session.
func Sessions(secret []byte) gin.HandlerFunc {
	store := cookie.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
	})
	return sessions.Sessions(session.Name, store)
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *ginext.Context) {
		if !session.IsAdmin(c) {
			dto.AccessDeniedError(c)
			return
		}
		c.Next()
	}
}
