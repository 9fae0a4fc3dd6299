package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name string `json:"name"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *entry) func() error {
		return func() error {
			calls++
			dest.Name = "alice"
			return nil
		}
	}

	var first entry
	require.NoError(t, Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "alice", first.Name)
	assert.True(t, mr.Exists("user:1"))

	var second entry
	require.NoError(t, Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "alice", second.Name)
	assert.Equal(t, 1, calls)

	mr.FastForward(UserTTL + time.Second)
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	boom := errors.New("boom")

	var e entry
	err := Aside(context.Background(), UserKey(2), &e, UserTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:2"))
}

func TestAside_RedisDownFallsThrough(t *testing.T) {
	mr := setupMiniredis(t)
	mr.Close()

	var e entry
	err := Aside(context.Background(), UserKey(3), &e, UserTTL, func() error {
		e.Name = "db"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "db", e.Name)
}

func TestInvalidateUser(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("user:5", `{"name":"x"}`))

	InvalidateUser(context.Background(), 5)
	assert.False(t, mr.Exists("user:5"))
}

func TestInvalidateUserAfterWrite_DropsLateStaleEntry(t *testing.T) {
	mr := setupMiniredis(t)
	prev := ReinvalidateDelay
	ReinvalidateDelay = 30 * time.Millisecond
	t.Cleanup(func() { ReinvalidateDelay = prev })

	require.NoError(t, mr.Set("user:6", `{"name":"old"}`))
	InvalidateUserAfterWrite(context.Background(), 6)
	assert.False(t, mr.Exists("user:6"))

	require.NoError(t, mr.Set("user:6", `{"name":"old"}`))
	assert.Eventually(t, func() bool { return !mr.Exists("user:6") }, time.Second, 5*time.Millisecond)
}

func TestNilClientIsNoop(t *testing.T) {
	SetClient(nil)
	found, err := GetJSON(context.Background(), "k", &entry{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetJSON(context.Background(), "k", entry{}, time.Minute))
	InvalidateUser(context.Background(), 1)
	InvalidateUserAfterWrite(context.Background(), 1)
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = ParseOptions("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	_, err = ParseOptions("redis://[bad")
	assert.Error(t, err)
}
