package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestAuthService_Spans(t *testing.T) {
	recorder := recordSpans(t)
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)
	_, err = env.svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	_, err = env.svc.Me(ctx, "missing")
	require.Error(t, err)

	var meSpans []sdktrace.ReadOnlySpan
	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
		if span.Name() == "auth.me" {
			meSpans = append(meSpans, span)
		}
	}
	assert.Contains(t, names, "auth.signup")
	require.Len(t, meSpans, 2)
	assert.Equal(t, codes.Unset, meSpans[0].Status().Code)
	assert.Equal(t, codes.Error, meSpans[1].Status().Code)
	assert.Equal(t, MsgUserNotFound, meSpans[1].Status().Description)
}
