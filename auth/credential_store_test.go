package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-here/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := auth.NewMemoryStore(clk.Now)

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	assert.Equal(t, time.Minute, store.TTL("k"))

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	clk.Advance(time.Minute)

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, auth.ErrCredentialNotFound)
	assert.Zero(t, store.TTL("k"))
}

func TestMemoryStoreSetNX(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := auth.NewMemoryStore(clk.Now)

	written, err := store.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, written)

	v, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	clk.Advance(2 * time.Minute)
	written, err = store.SetNX(ctx, "k", "third", time.Minute)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestMemoryStoreSetNXIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore(nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.SetNX(ctx, "race", "x", time.Minute)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore(nil)

	require.NoError(t, store.Set(ctx, "k", "v", 0))

	deleted, err := store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "blacklist:abc", auth.BlacklistKey(auth.DefaultBlacklistPrefix, "abc"))
	assert.Equal(t, "otp:ana@example.com", auth.OTPKey(auth.DefaultOTPPrefix, " Ana@Example.com "))
}
