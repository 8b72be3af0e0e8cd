package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"lexpertease/internal/auth"
	apperrors "lexpertease/internal/errors"
	"lexpertease/internal/telemetry"
)

// Prefix is the URL prefix procedures are served under.
const Prefix = "/api/trpc"

const unknownPathLabel = "unknown"

// Server dispatches wire calls to registered procedures.
type Server struct {
	procs     map[string]*Procedure
	validator *Validator
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// NewServer creates an empty Server. metrics may be nil.
func NewServer(logger *slog.Logger, metrics *telemetry.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		procs:     map[string]*Procedure{},
		validator: NewValidator(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Validator returns the validator used for procedure inputs.
func (s *Server) Validator() *Validator {
	return s.validator
}

// Register adds procedures. It panics on a duplicate path.
func (s *Server) Register(procs ...*Procedure) {
	for _, p := range procs {
		if _, dup := s.procs[p.Path]; dup {
			panic(fmt.Sprintf("rpc: duplicate procedure %q", p.Path))
		}
		s.procs[p.Path] = p
	}
}

// Mount routes every path below g to the server.
func (s *Server) Mount(g *echo.Group) {
	g.GET("/*", s.Handle)
	g.POST("/*", s.Handle)
}

type resultEnvelope struct {
	Result resultData `json:"result"`
}

type resultData struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error apperrors.ErrorResponse `json:"error"`
}

// Handle serves one request, single or batched.
func (s *Server) Handle(c echo.Context) error {
	paths := c.Param("*")
	if unescaped, err := url.PathUnescape(paths); err == nil {
		paths = unescaped
	}
	batch := isBatch(c.QueryParam("batch"))

	raw, err := s.rawInput(c)
	if err != nil {
		o := s.failure(c, paths, err, time.Now())
		return c.JSON(o.status, o.body)
	}

	if !batch {
		o := s.call(c, paths, raw)
		return c.JSON(o.status, o.body)
	}

	names := strings.Split(paths, ",")
	inputs, err := splitBatch(raw)
	items := make([]outcome, len(names))
	for i, name := range names {
		if err != nil {
			items[i] = s.failure(c, name, err, time.Now())
			continue
		}
		items[i] = s.call(c, name, inputs[strconv.Itoa(i)])
	}

	status := http.StatusOK
	bodies := make([]any, len(items))
	for i, it := range items {
		bodies[i] = it.body
		if i == 0 {
			status = it.status
		} else if it.status != status {
			status = http.StatusMultiStatus
		}
	}
	return c.JSON(status, bodies)
}

type outcome struct {
	status int
	body   any
}

// call runs one procedure and renders its envelope.
func (s *Server) call(c echo.Context, path string, raw json.RawMessage) outcome {
	start := time.Now()
	out, err := s.invoke(c, path, raw)
	if err != nil {
		return s.failure(c, path, err, start)
	}
	s.metrics.ObserveCall(path, "OK", time.Since(start))
	return outcome{status: http.StatusOK, body: resultEnvelope{Result: resultData{Data: out}}}
}

func (s *Server) invoke(c echo.Context, path string, raw json.RawMessage) (any, error) {
	proc, ok := s.procs[path]
	if !ok {
		typ := TypeMutation
		if c.Request().Method == http.MethodGet {
			typ = TypeQuery
		}
		return nil, apperrors.NotFound(fmt.Sprintf("No %q-procedure on path %q", typ, path))
	}
	if c.Request().Method != proc.Type.method() {
		return nil, apperrors.MethodNotSupported(fmt.Sprintf("Unsupported %s-request to %s procedure at path %q", c.Request().Method, proc.Type, path))
	}

	ctx := c.Request().Context()
	call := &Call{Path: path, echo: c}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		call.Identity = id
	}

	for _, guard := range proc.guards {
		if err := guard(call); err != nil {
			return nil, err
		}
	}
	return proc.invoke(ctx, call, s.decoder(raw))
}

func (s *Server) failure(c echo.Context, path string, err error, start time.Time) outcome {
	httpErr := apperrors.MapErrorToHTTP(err)

	label := path
	if _, ok := s.procs[path]; !ok {
		label = unknownPathLabel
	}
	s.metrics.ObserveCall(label, httpErr.Code, time.Since(start))

	attrs := []any{
		slog.String("path", path),
		slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		slog.String("code", httpErr.Code),
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindDatabase, apperrors.KindInternal:
		s.logger.ErrorContext(c.Request().Context(), "procedure failed", append(attrs, slog.Any("error", err))...)
	default:
		s.logger.DebugContext(c.Request().Context(), "procedure rejected", attrs...)
	}

	return outcome{status: httpErr.StatusCode, body: errorEnvelope{Error: httpErr.ToErrorResponse(path)}}
}

// rawInput reads the query input parameter or the request body.
func (s *Server) rawInput(c echo.Context) (json.RawMessage, error) {
	if c.Request().Method == http.MethodGet {
		return json.RawMessage(c.QueryParam("input")), nil
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperrors.Parse("Failed to read request body", err)
	}
	return body, nil
}

func (s *Server) decoder(raw json.RawMessage) func(any) error {
	return func(dst any) error {
		if !isEmptyInput(raw) {
			if err := json.Unmarshal(raw, dst); err != nil {
				return decodeError(err)
			}
		}
		if n, ok := dst.(Normalizer); ok {
			n.Normalize()
		}
		if isStructPtr(dst) {
			return s.validator.Validate(dst)
		}
		return nil
	}
}

func splitBatch(raw json.RawMessage) (map[string]json.RawMessage, error) {
	inputs := map[string]json.RawMessage{}
	if isEmptyInput(raw) {
		return inputs, nil
	}
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, apperrors.Parse("Batch input must be an object keyed by call index", err)
	}
	return inputs, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		msg := fmt.Sprintf("%s has an invalid type", humanize(typeErr.Field))
		return apperrors.Validation(msg, map[string]string{typeErr.Field: msg})
	}
	return apperrors.Parse("Invalid JSON input", err)
}

func isEmptyInput(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isStructPtr(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}

func isBatch(v string) bool {
	return v == "1" || v == "true"
}
