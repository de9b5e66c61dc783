// Package cache is a local SQLite store for chat history, so a reopened chat
// renders instantly while the fresh list loads. It is an accelerator, not a
// source of truth: every failure degrades to a cache miss.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"sort"
	"time"

	"github.com/xavlink/realtime/database"
	"github.com/xavlink/realtime/models"
)

// Store caches whole message lists keyed per chat. Eviction runs at write
// time: entries past the TTL go first, then the least recently accessed
// beyond the entry cap.
type Store struct {
	db         *database.DB
	maxEntries int
	ttl        time.Duration
}

// Open creates or opens the cache at path. On any failure it logs and
// returns a disabled store whose Get always misses and whose Put is a no-op,
// so callers never branch on cache availability.
func Open(path string, maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	migrations, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		log.Printf("[cache] disabled, embedded migrations unavailable: %v", err)
		return &Store{maxEntries: maxEntries, ttl: ttl}
	}
	db, err := database.New(path, migrations)
	if err != nil {
		log.Printf("[cache] disabled, cannot open %s: %v", path, err)
		return &Store{maxEntries: maxEntries, ttl: ttl}
	}

	return &Store{db: db, maxEntries: maxEntries, ttl: ttl}
}

// Close releases the underlying database. Safe on a disabled store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns a chat's cached messages oldest first, or a miss. Reading
// refreshes the entry's recency for eviction.
func (s *Store) Get(ctx context.Context, chatID string) ([]models.Message, bool) {
	if s.db == nil {
		return nil, false
	}

	key := cacheKey(chatID)
	var raw string
	err := s.db.Conn.QueryRowContext(ctx,
		`SELECT messages FROM message_cache WHERE cache_key = ?`, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		log.Printf("[cache] read %s: %v", key, err)
		return nil, false
	}

	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		// Corrupt entry: drop it rather than serve garbage.
		log.Printf("[cache] corrupt entry %s, evicting: %v", key, err)
		s.delete(ctx, key)
		return nil, false
	}

	s.touch(ctx, key)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, true
}

// Put replaces a chat's cached list wholesale and runs eviction. Partial
// updates are deliberately unsupported; the caller always has the full list.
func (s *Store) Put(ctx context.Context, chatID string, messages []models.Message) {
	if s.db == nil {
		return
	}

	raw, err := json.Marshal(messages)
	if err != nil {
		log.Printf("[cache] marshal chat %s: %v", chatID, err)
		return
	}

	now := time.Now().UnixMilli()
	key := cacheKey(chatID)
	_, err = s.db.Conn.ExecContext(ctx, `
		INSERT INTO message_cache (cache_key, chat_id, messages, updated_at, last_access)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			messages = excluded.messages,
			updated_at = excluded.updated_at,
			last_access = excluded.last_access`,
		key, chatID, string(raw), now, now,
	)
	if err != nil {
		log.Printf("[cache] write %s: %v", key, err)
		return
	}

	s.evict(ctx, now)
}

// Clear drops one chat's entry, e.g. after leaving the conversation.
func (s *Store) Clear(ctx context.Context, chatID string) {
	if s.db == nil {
		return
	}
	s.delete(ctx, cacheKey(chatID))
}

func (s *Store) evict(ctx context.Context, now int64) {
	cutoff := now - s.ttl.Milliseconds()
	if _, err := s.db.Conn.ExecContext(ctx,
		`DELETE FROM message_cache WHERE updated_at < ?`, cutoff,
	); err != nil {
		log.Printf("[cache] ttl eviction: %v", err)
	}

	_, err := s.db.Conn.ExecContext(ctx, `
		DELETE FROM message_cache WHERE cache_key NOT IN (
			SELECT cache_key FROM message_cache
			ORDER BY last_access DESC
			LIMIT ?
		)`, s.maxEntries,
	)
	if err != nil {
		log.Printf("[cache] lru eviction: %v", err)
	}
}

func (s *Store) touch(ctx context.Context, key string) {
	if _, err := s.db.Conn.ExecContext(ctx,
		`UPDATE message_cache SET last_access = ? WHERE cache_key = ?`,
		time.Now().UnixMilli(), key,
	); err != nil {
		log.Printf("[cache] touch %s: %v", key, err)
	}
}

func (s *Store) delete(ctx context.Context, key string) {
	if _, err := s.db.Conn.ExecContext(ctx,
		`DELETE FROM message_cache WHERE cache_key = ?`, key,
	); err != nil {
		log.Printf("[cache] delete %s: %v", key, err)
	}
}

func cacheKey(chatID string) string {
	return "chat_" + chatID
}
