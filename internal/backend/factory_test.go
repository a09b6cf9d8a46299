package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immo/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", SeedFile: "seed.yaml"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.Nil(t, res.Publisher)
	assert.Nil(t, res.Cleanup)

	cats, err := res.Repository.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 9)
}

func TestCreateMemoryBackendFromSeed(t *testing.T) {
	ctx := context.Background()
	seed := filepath.Join("..", "..", "data", "seed.yaml")
	if _, err := os.Stat(seed); err != nil {
		t.Skip("seed file not available")
	}

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)

	props, err := res.Repository.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, props, 3)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "immo.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)
	defer func() { assert.NoError(t, res.Cleanup()) }()

	assert.Nil(t, res.Publisher)
	cats, err := res.Repository.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}
