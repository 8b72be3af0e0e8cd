// Package middleware resolves the caller identity and logs requests.
package middleware

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"lexpertease/internal/auth"
)

const (
	// ContextKeyClaims holds the validated *auth.Claims on the echo context.
	ContextKeyClaims = "jwt_claims"
	contextKeyToken  = "jwt_token"

	// TokenLookup lists where access tokens are read from, in order.
	TokenLookup = "header:Authorization:Bearer ,cookie:token,header:X-Auth-Token"
)

// JWT extracts and validates an access token when one is present. Missing
// or invalid tokens leave the request anonymous; guards decide later
// whether that is acceptable.
func JWT(jwtService *auth.JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: TokenLookup,
		ContextKey:  ContextKeyClaims,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				return nil, err
			}
			c.Set(contextKeyToken, token)
			return claims, nil
		},
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
	})
}
