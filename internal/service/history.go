package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-scam-shield-demo/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HistoryStore is the narrow persistence interface the API consumes. The
// defense layer treats history storage as an opaque collaborator; anything
// satisfying this interface can back it.
type HistoryStore interface {
	Save(ctx context.Context, entry *models.HistoryEntry) error
	List(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error)
}

// GormHistoryStore persists history entries in Postgres.
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore creates a database-backed history store.
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{db: db}
}

func (s *GormHistoryStore) Save(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormHistoryStore) List(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	q := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MemoryHistoryStore keeps history in memory, used when no database is
// configured (development and tests).
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]models.HistoryEntry
	nextID  uint
}

// NewMemoryHistoryStore creates an empty in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{entries: make(map[string][]models.HistoryEntry)}
}

func (s *MemoryHistoryStore) Save(_ context.Context, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries[entry.SessionID] = append(s.entries[entry.SessionID], *entry)
	return nil
}

func (s *MemoryHistoryStore) List(_ context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[sessionID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]models.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// CachedHistoryStore wraps a HistoryStore with a Redis read-through cache.
// Writes invalidate the session's cached list.
type CachedHistoryStore struct {
	inner  HistoryStore
	client *redis.Client
	ttl    time.Duration
}

// NewCachedHistoryStore creates a cache-fronted history store.
func NewCachedHistoryStore(inner HistoryStore, client *redis.Client, ttl time.Duration) *CachedHistoryStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedHistoryStore{inner: inner, client: client, ttl: ttl}
}

func (s *CachedHistoryStore) cacheKey(sessionID string) string {
	return "history:" + sessionID
}

func (s *CachedHistoryStore) Save(ctx context.Context, entry *models.HistoryEntry) error {
	if err := s.inner.Save(ctx, entry); err != nil {
		return err
	}
	// Cache failures are not persistence failures.
	s.client.Del(ctx, s.cacheKey(entry.SessionID))
	return nil
}

func (s *CachedHistoryStore) List(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	key := s.cacheKey(sessionID)

	if cached, err := s.client.Get(ctx, key).Result(); err == nil {
		var entries []models.HistoryEntry
		if err := json.Unmarshal([]byte(cached), &entries); err == nil {
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return entries, nil
		}
	}

	entries, err := s.inner.List(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		s.client.Set(ctx, key, data, s.ttl)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
