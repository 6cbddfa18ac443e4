package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"agenthub/internal/auth"
	"agenthub/internal/authz"
	"agenthub/internal/httpx"
)

// AuthRequired validates the JWT access token. The token is read from the
// Authorization header, or from the "token" query parameter as a fallback
// because EventSource clients cannot set headers.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httpx.FailErr(c, httpx.ErrUnauthorized("invalid authorization header format"))
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			httpx.FailErr(c, httpx.ErrUnauthorized("missing authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ParseAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				httpx.FailErr(c, httpx.ErrTokenExpired("token expired"))
			} else {
				httpx.FailErr(c, httpx.ErrInvalidToken("invalid token"))
			}
			c.Abort()
			return
		}

		c.Set("uid", claims.UID)
		c.Set("username", claims.Username)
		c.Set("is_superuser", claims.IsSuperuser)

		c.Next()
	}
}

// Identity extracts the authenticated caller set by AuthRequired
func Identity(c *gin.Context) authz.Identity {
	uid, _ := c.Get("uid")
	isSuper, _ := c.Get("is_superuser")

	id := authz.Identity{}
	if v, ok := uid.(int); ok {
		id.UID = v
	}
	if v, ok := isSuper.(bool); ok {
		id.IsSuperuser = v
	}
	return id
}
