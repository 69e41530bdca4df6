package middleware

import (
	"strings"

	"manual-approval-workflow/internal/auth"
	"manual-approval-workflow/internal/domain"
	"manual-approval-workflow/internal/errors"

	"github.com/gin-gonic/gin"
)

type UserProvider interface {
	GetUserByID(id uint64) (*domain.User, error)
}

type Auth struct {
	UserService    UserProvider
	InternalSecret string
}

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

		parsedToken, err := auth.VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		userID, _, tokenVersion, err := auth.GetDataFromToken(parsedToken)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		user, err := m.UserService.GetUserByID(userID)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid User ID!", err))
			ctx.Abort()
			return
		}

		// Check token version
		if user.TokenVersion != tokenVersion {
			ctx.Error(errors.Unauthorized("Invalid token version!", nil))
			ctx.Abort()
			return
		}

		// Role comes from the user row, not the claim, so a role change
		// takes effect without waiting for the token to expire.
		ctx.Set("user_id", userID)
		ctx.Set("user_role", user.Role)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}

func (m *Auth) InternalAuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(
			ctx.GetHeader("Authorization"),
			"Bearer ",
		)

		if token != m.InternalSecret {
			ctx.Error(errors.Unauthorized("Unauthorized internal call!", nil))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

// CurrentActor resolves the authenticated actor set by AuthMiddleWare.
func CurrentActor(ctx *gin.Context) domain.Actor {
	id, _ := ctx.Get("user_id")
	role, _ := ctx.Get("user_role")

	actor := domain.Actor{}
	if v, ok := id.(uint64); ok {
		actor.ID = v
	}
	if v, ok := role.(string); ok {
		actor.Role = v
	}
	return actor
}
