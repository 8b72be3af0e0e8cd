package db

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpertease/internal/config"
	"lexpertease/internal/repository/memory"
)

func TestOpenStore(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store, err := OpenStore(ctx, &config.Config{DBDriver: "memory"}, log)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, store.Ping(ctx))

	_, err = OpenStore(ctx, &config.Config{DBDriver: "sqlite"}, log)
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestWithPoolNoop(t *testing.T) {
	got, err := withPool(nil, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMongoOptions(t *testing.T) {
	opts := mongoOptions("mongodb://localhost:27017/lexpertease", 20, 3*time.Second)

	require.NoError(t, opts.Validate())
	require.NotNil(t, opts.ServerSelectionTimeout)
	assert.Equal(t, 3*time.Second, *opts.ServerSelectionTimeout)
	require.NotNil(t, opts.Timeout)
	assert.Equal(t, mongoOperationTimeout, *opts.Timeout)
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	assert.Equal(t, []string{"localhost:27017"}, opts.Hosts)

	assert.Nil(t, mongoOptions("mongodb://localhost:27017", 0, time.Second).MaxPoolSize)
}
