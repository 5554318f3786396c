package middleware

import (
	"context"
	"strings"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/utils"
	"github.com/gin-gonic/gin"
)

const userKey = "user"

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

func SetUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}

// CurrentUser returns the signed-in user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func cookieToken(c *gin.Context) string {
	token, err := c.Cookie(utils.SessionCookie)
	if err != nil || token == utils.LoggedOutMarker {
		return ""
	}
	return token
}

// Protect requires a valid session from the Authorization header or the
// session cookie.
func Protect(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = cookieToken(c)
		}
		if token == "" {
			Fail(c, apperror.Unauthorized("You are not logged in! Please log in to get access."))
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			Fail(c, err)
			return
		}
		SetUser(c, user)
		c.Next()
	}
}

// IsLoggedIn exposes the cookie session's user to views when there is one.
// It never fails the request.
func IsLoggedIn(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := cookieToken(c); token != "" {
			if user, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				SetUser(c, user)
			}
		}
		c.Next()
	}
}

// RestrictTo allows only users holding one of roles. It must run after
// Protect.
func RestrictTo(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.HasRole(roles...) {
			Fail(c, apperror.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}
