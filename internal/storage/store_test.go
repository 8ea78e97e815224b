package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend has to share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyCart, `[{"product_id":1}]`))
	v, err := s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[{"product_id":1}]`, v)

	require.NoError(t, s.Set(ctx, KeyCart, `[]`))
	v, err = s.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Remove(ctx, KeyCart))
	_, err = s.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	// removing an absent key is not an error
	assert.NoError(t, s.Remove(ctx, KeyCart))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.RunMigrations())

	exerciseStore(t, s)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.RunMigrations())
	require.NoError(t, s.Set(ctx, KeyToken, "abc"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.RunMigrations()) // no change is fine

	v, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func setupTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl), mr
}

func TestRedis(t *testing.T) {
	s, _ := setupTestRedis(t, 0)
	exerciseStore(t, s)
}

func TestRedis_NoTTLByDefault(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	require.NoError(t, s.Set(context.Background(), KeyCart, "[]"))
	assert.Zero(t, mr.TTL(KeyCart))
}

func TestRedis_TTLWithJitter(t *testing.T) {
	s, mr := setupTestRedis(t, time.Hour)
	require.NoError(t, s.Set(context.Background(), KeyCart, "[]"))

	ttl := mr.TTL(KeyCart)
	assert.GreaterOrEqual(t, ttl, time.Hour)
	assert.Less(t, ttl, time.Hour+5*time.Minute)

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(context.Background(), KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	mr.Close()

	_, err := s.Get(context.Background(), KeyCart)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNamespaced(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	a := Namespaced(base, "shop-a")
	b := Namespaced(base, "shop-b")

	require.NoError(t, a.Set(ctx, KeyCart, "A"))
	require.NoError(t, b.Set(ctx, KeyCart, "B"))

	v, err := base.Get(ctx, "shop-a:cart")
	require.NoError(t, err)
	assert.Equal(t, "A", v)

	require.NoError(t, a.Remove(ctx, KeyCart))
	_, err = a.Get(ctx, KeyCart)
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = b.Get(ctx, KeyCart)
	require.NoError(t, err)
	assert.Equal(t, "B", v)

	assert.Same(t, base, Namespaced(base, "").(*Memory))
}
