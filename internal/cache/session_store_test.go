package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_SetGetDelete(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "session:acct-1", "token-value", time.Minute))

	value, ok, err := store.Get(ctx, "session:acct-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token-value", value)

	require.NoError(t, store.Delete(ctx, "session:acct-1"))

	_, ok, err = store.Get(ctx, "session:acct-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "session:acct-1", "token-value", 10*time.Millisecond))

	time.Sleep(25 * time.Millisecond)

	_, ok, err := store.Get(ctx, "session:acct-1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")
}

func TestMemorySessionStore_DeleteIdempotent(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "session:never-set"))
	require.NoError(t, store.Delete(ctx, "session:never-set"))
}

func TestMemorySessionStore_Overwrite(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "session:acct-1", "first", time.Minute))
	require.NoError(t, store.SetWithTTL(ctx, "session:acct-1", "second", time.Minute))

	value, ok, err := store.Get(ctx, "session:acct-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", value)
}
