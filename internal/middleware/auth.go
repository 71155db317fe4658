package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/craftfolio/craftfolio/internal/auth"
	"github.com/craftfolio/craftfolio/pkg/errors"
	"github.com/craftfolio/craftfolio/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// DefaultTokenCookie is the cookie consulted when no Authorization header is present.
const DefaultTokenCookie = "token"

// Auth enforces JWT authentication using the supplied JWT service. The token
// is read from the Authorization header, falling back to the session cookie.
func Auth(jwt *iauth.JWTService, cookieName string) gin.HandlerFunc {
	if cookieName == "" {
		cookieName = DefaultTokenCookie
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(cookieName); err == nil {
				token = strings.TrimSpace(cookie)
			}
		}
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)

		c.Next()
	}
}

// UserID extracts the authenticated user identifier from the request context.
func UserID(c *gin.Context) (uint, bool) {
	value, ok := c.Get(CtxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}
