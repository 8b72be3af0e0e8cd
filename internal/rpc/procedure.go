// Package rpc serves typed procedures over a tRPC-compatible HTTP wire
// format: queries over GET, mutations over POST, optional batching.
package rpc

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"lexpertease/internal/auth"
)

// Type distinguishes read procedures from state-changing ones.
type Type string

const (
	TypeQuery    Type = "query"
	TypeMutation Type = "mutation"
)

func (t Type) method() string {
	if t == TypeQuery {
		return http.MethodGet
	}
	return http.MethodPost
}

// Call is the per-request context handed to procedures.
type Call struct {
	Path string
	// Identity is nil for anonymous callers.
	Identity *auth.Identity
	echo     echo.Context
}

// UserAgent returns the caller's User-Agent header.
func (c *Call) UserAgent() string {
	if c.echo == nil {
		return ""
	}
	return c.echo.Request().UserAgent()
}

// RealIP returns the caller's address as seen through proxies.
func (c *Call) RealIP() string {
	if c.echo == nil {
		return ""
	}
	return c.echo.RealIP()
}

// Empty is the input of procedures that take none.
type Empty struct{}

// Normalizer is implemented by inputs that canonicalise fields before
// validation.
type Normalizer interface {
	Normalize()
}

// Handler implements a procedure with a typed input and output.
type Handler[In, Out any] func(ctx context.Context, call *Call, in In) (Out, error)

// Procedure is a registered endpoint.
type Procedure struct {
	Path   string
	Type   Type
	guards []Guard
	invoke func(ctx context.Context, call *Call, decode func(any) error) (any, error)
}

// Query declares a read procedure served over GET.
func Query[In, Out any](path string, h Handler[In, Out], guards ...Guard) *Procedure {
	return newProcedure(TypeQuery, path, h, guards)
}

// Mutation declares a state-changing procedure served over POST.
func Mutation[In, Out any](path string, h Handler[In, Out], guards ...Guard) *Procedure {
	return newProcedure(TypeMutation, path, h, guards)
}

func newProcedure[In, Out any](typ Type, path string, h Handler[In, Out], guards []Guard) *Procedure {
	return &Procedure{
		Path:   path,
		Type:   typ,
		guards: guards,
		invoke: func(ctx context.Context, call *Call, decode func(any) error) (any, error) {
			var in In
			if err := decode(&in); err != nil {
				return nil, err
			}
			return h(ctx, call, in)
		},
	}
}
