package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"bookworm/internal/common/errors"
	"bookworm/internal/domain/user"
)

const keyAccount = "account"

// TokenResolver maps a bearer token to the account that owns it.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*user.Account, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer <token>" header.
func RequireBearer(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			_ = c.Error(errors.NewUnauthorizedError("No authentication token, access denied"))
			c.Abort()
			return
		}

		account, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil || account == nil {
			_ = c.Error(errors.NewUnauthorizedError("Token is not valid"))
			c.Abort()
			return
		}

		c.Set(keyAccount, account)
		c.Set(keyUserID, account.ID)
		c.Next()
	}
}

// CurrentAccount returns the account set by RequireBearer.
func CurrentAccount(c *gin.Context) (*user.Account, bool) {
	v, ok := c.Get(keyAccount)
	if !ok {
		return nil, false
	}
	a, ok := v.(*user.Account)
	return a, ok
}
