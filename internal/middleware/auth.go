package middleware

import (
	"collabroom/internal/auth"
	"collabroom/internal/errors"
	"strings"

	"github.com/gin-gonic/gin"
)

type Auth struct {
	Tokens *auth.Manager
}

// AuthMiddleWare verifies the bearer credential from the Authorization
// header or the token query parameter and stores the caller's identity on
// the context.
func (m *Auth) AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		var token string
		tokenQuery := ctx.Query("token")

		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if tokenQuery != "" {
			token = tokenQuery
		} else {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		userID, username, err := m.Tokens.Verify(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", userID)
		ctx.Set("username", username)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}
