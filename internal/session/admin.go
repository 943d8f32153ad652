package session

import (
	"crypto/subtle"

	"github.com/gin-contrib/sessions"
	"github.com/wb-go/wbf/ginext"
)

// Name is the cookie that carries the session.
const Name = "portal_session"

const adminKey = "admin"

// PasswordMatches compares the shared admin secret verbatim.
func PasswordMatches(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// SetAdmin records whether this browser session has unlocked the admin view.
func SetAdmin(c *ginext.Context, unlocked bool) error {
	s := sessions.Default(c)
	if unlocked {
		s.Set(adminKey, true)
	} else {
		s.Delete(adminKey)
	}
	return s.Save()
}

func IsAdmin(c *ginext.Context) bool {
	v, ok := sessions.Default(c).Get(adminKey).(bool)
	return ok && v
}
