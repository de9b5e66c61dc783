package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavlink/realtime/models"
)

func newTestStore(t *testing.T, maxEntries int, ttl time.Duration) *Store {
	t.Helper()
	s := Open(filepath.Join(t.TempDir(), "cache.db"), maxEntries, ttl)
	require.NotNil(t, s.db, "store must open against a writable temp dir")
	t.Cleanup(func() { s.Close() })
	return s
}

func cachedMessage(id, chatID string, at time.Time) models.Message {
	return models.Message{ID: id, ChatID: chatID, SenderID: "peer", Text: id, CreatedAt: at}
}

func TestRoundTripOrdersAscending(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	// Deliberately unsorted.
	s.Put(ctx, "chat-1", []models.Message{
		cachedMessage("m3", "chat-1", base.Add(2*time.Second)),
		cachedMessage("m1", "chat-1", base),
		cachedMessage("m2", "chat-1", base.Add(time.Second)),
	})

	messages, ok := s.Get(ctx, "chat-1")
	require.True(t, ok)
	require.Len(t, messages, 3)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
	assert.Equal(t, "m3", messages[2].ID)
}

func TestGetMissesUnknownChat(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)

	_, ok := s.Get(context.Background(), "never-cached")
	assert.False(t, ok)
}

func TestPutReplacesWholesale(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)
	ctx := context.Background()

	base := time.Now().UTC()
	s.Put(ctx, "chat-1", []models.Message{cachedMessage("m1", "chat-1", base)})
	s.Put(ctx, "chat-1", []models.Message{cachedMessage("m2", "chat-1", base.Add(time.Second))})

	messages, ok := s.Get(ctx, "chat-1")
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "m2", messages[0].ID)
}

func TestEntryCapEvictsLeastRecentlyAccessed(t *testing.T) {
	s := newTestStore(t, 2, time.Hour)
	ctx := context.Background()

	base := time.Now().UTC()
	s.Put(ctx, "chat-1", []models.Message{cachedMessage("m1", "chat-1", base)})
	time.Sleep(5 * time.Millisecond)
	s.Put(ctx, "chat-2", []models.Message{cachedMessage("m2", "chat-2", base)})
	time.Sleep(5 * time.Millisecond)

	// Touch chat-1 so chat-2 becomes the eviction candidate.
	_, ok := s.Get(ctx, "chat-1")
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	s.Put(ctx, "chat-3", []models.Message{cachedMessage("m3", "chat-3", base)})

	_, ok = s.Get(ctx, "chat-1")
	assert.True(t, ok, "recently read entry survives")
	_, ok = s.Get(ctx, "chat-2")
	assert.False(t, ok, "least recently accessed entry is evicted")
	_, ok = s.Get(ctx, "chat-3")
	assert.True(t, ok)
}

func TestTTLEvictionAtWriteTime(t *testing.T) {
	s := newTestStore(t, 10, 30*time.Millisecond)
	ctx := context.Background()

	s.Put(ctx, "chat-old", []models.Message{cachedMessage("m1", "chat-old", time.Now().UTC())})
	time.Sleep(50 * time.Millisecond)

	// The next write sweeps anything past the TTL.
	s.Put(ctx, "chat-new", []models.Message{cachedMessage("m2", "chat-new", time.Now().UTC())})

	_, ok := s.Get(ctx, "chat-old")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "chat-new")
	assert.True(t, ok)
}

func TestClearDropsOneChat(t *testing.T) {
	s := newTestStore(t, 10, time.Hour)
	ctx := context.Background()

	s.Put(ctx, "chat-1", []models.Message{cachedMessage("m1", "chat-1", time.Now().UTC())})
	s.Clear(ctx, "chat-1")

	_, ok := s.Get(ctx, "chat-1")
	assert.False(t, ok)
}

func TestDisabledStoreDegradesToNoop(t *testing.T) {
	// /dev/null is not a directory, so opening under it fails and the store
	// must come back disabled instead of erroring.
	s := Open(filepath.Join("/dev/null", "sub", "cache.db"), 10, time.Hour)
	ctx := context.Background()

	s.Put(ctx, "chat-1", []models.Message{cachedMessage("m1", "chat-1", time.Now().UTC())})
	_, ok := s.Get(ctx, "chat-1")
	assert.False(t, ok)
	assert.NoError(t, s.Close())
}
