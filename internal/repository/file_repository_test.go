package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository_RoundTrip(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Load(ctx, "storefront:cart:local")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, repo.Save(ctx, "storefront:cart:local", []byte(`{"items":[]}`)))
	data, err := repo.Load(ctx, "storefront:cart:local")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))

	require.NoError(t, repo.Save(ctx, "storefront:cart:local", []byte(`{"items":[{"id":"a"}]}`)))
	data, err = repo.Load(ctx, "storefront:cart:local")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a"`)
}

func TestFileRepository_KeysAreIsolated(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	keys := Keys{Namespace: "storefront"}

	require.NoError(t, repo.Save(ctx, keys.Cart("local"), []byte("cart")))
	require.NoError(t, repo.Save(ctx, keys.Auth("local"), []byte("auth")))
	require.NoError(t, repo.Delete(ctx, keys.Auth("local")))

	data, err := repo.Load(ctx, keys.Cart("local"))
	require.NoError(t, err)
	assert.Equal(t, "cart", string(data))

	_, err = repo.Load(ctx, keys.Auth("local"))
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestFileRepository_DeleteMissingIsNoop(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, repo.Delete(context.Background(), "nothing"))
}

func TestFileRepository_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), "k", []byte("v")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestFileRepository_CancelledContext(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.Save(ctx, "k", []byte("v")), context.Canceled)
}

func TestKeys(t *testing.T) {
	keys := Keys{Namespace: "storefront"}

	assert.Equal(t, "storefront:cart:abc", keys.Cart("abc"))
	assert.Equal(t, "storefront:auth:abc", keys.Auth("abc"))
	assert.NotEqual(t, keys.Cart("abc"), keys.Auth("abc"))
	assert.Equal(t, "cart:abc", Keys{}.Cart("abc"))
}
