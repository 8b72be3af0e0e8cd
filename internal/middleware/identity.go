package middleware

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"

	"lexpertease/internal/auth"
	"lexpertease/internal/repository"
)

// Identity turns validated claims into an auth.Identity on the request
// context. Denylisted tokens and unknown users stay anonymous.
func Identity(users repository.UserRepository, tokens auth.TokenStoreInterface, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(ContextKeyClaims).(*auth.Claims)
			if !ok || claims == nil {
				return next(c)
			}
			ctx := c.Request().Context()

			if tokens != nil {
				revoked, err := tokens.IsAccessTokenBlacklisted(ctx, claims.ID)
				if err != nil {
					logger.WarnContext(ctx, "denylist lookup failed", slog.Any("error", err))
				}
				if revoked {
					return next(c)
				}
			}

			user, err := users.FindByID(ctx, claims.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					logger.ErrorContext(ctx, "load identity", slog.String("user_id", claims.UserID), slog.Any("error", err))
				}
				return next(c)
			}

			token, _ := c.Get(contextKeyToken).(string)
			id := &auth.Identity{User: user, Token: token, Claims: claims}
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(ctx, id)))
			return next(c)
		}
	}
}
