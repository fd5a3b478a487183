package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprayline/foamops-api/internal/config"
	"go.uber.org/zap"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "sync/olivia.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "sync/olivia.json", []byte(`{"v":1}`)))
	require.NoError(t, s.Put(ctx, "sync/olivia.json", []byte(`{"v":2}`)))

	got, err := s.Get(ctx, "sync/olivia.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "sync/olivia.json"))
	require.NoError(t, s.Delete(ctx, "sync/olivia.json"))
	_, err = s.Get(ctx, "sync/olivia.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "../outside.json", []byte("x")))
	assert.Error(t, s.Put(context.Background(), "", []byte("x")))
}

func TestNewStorage_UnknownMode(t *testing.T) {
	_, err := NewStorage(&config.StorageConfig{Mode: "ftp"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewStorage(&config.StorageConfig{Mode: "azure"}, zap.NewNop())
	assert.Error(t, err)
}
