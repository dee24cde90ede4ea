package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const VerificationTokenTTL = 24 * time.Hour

type VerificationEntry struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type VerificationStats struct {
	Backend string `json:"backend"`
	Total   int    `json:"total"`
	Expired int    `json:"expired"`
}

// VerificationStore caches email-verification tokens. Implementations are owned by main and
// closed on shutdown.
type VerificationStore interface {
	Put(ctx context.Context, token, email string, ttl time.Duration) error
	Get(ctx context.Context, token string) (*VerificationEntry, bool, error)
	Delete(ctx context.Context, token string) error
	Cleanup(ctx context.Context) (int, error)
	Stats(ctx context.Context) (VerificationStats, error)
	Close() error
}

type MemoryVerificationStore struct {
	mu      sync.RWMutex
	entries map[string]VerificationEntry
	now     func() time.Time
}

func NewMemoryVerificationStore() *MemoryVerificationStore {
	return &MemoryVerificationStore{
		entries: make(map[string]VerificationEntry),
		now:     defaultNow,
	}
}

func (m *MemoryVerificationStore) Put(_ context.Context, token, email string, ttl time.Duration) error {
	now := m.now()
	m.mu.Lock()
	m.entries[token] = VerificationEntry{Email: email, ExpiresAt: now.Add(ttl), CreatedAt: now}
	m.mu.Unlock()
	return nil
}

// Get hides expired entries even before Cleanup removes them.
func (m *MemoryVerificationStore) Get(_ context.Context, token string) (*VerificationEntry, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok || !m.now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (m *MemoryVerificationStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}

func (m *MemoryVerificationStore) Cleanup(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, entry := range m.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(m.entries, token)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryVerificationStore) Stats(_ context.Context) (VerificationStats, error) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := VerificationStats{Backend: "memory", Total: len(m.entries)}
	for _, entry := range m.entries {
		if !now.Before(entry.ExpiresAt) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Close drops every entry.
func (m *MemoryVerificationStore) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]VerificationEntry)
	m.mu.Unlock()
	return nil
}

const verificationKeyPrefix = "verify:"

// RedisVerificationStore keeps tokens as TTL keys so expiry needs no sweeping.
type RedisVerificationStore struct {
	client *redis.Client
}

func NewRedisVerificationStore(client *redis.Client) *RedisVerificationStore {
	return &RedisVerificationStore{client: client}
}

func (r *RedisVerificationStore) Put(ctx context.Context, token, email string, ttl time.Duration) error {
	now := defaultNow()
	data, err := json.Marshal(VerificationEntry{Email: email, ExpiresAt: now.Add(ttl), CreatedAt: now})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, verificationKeyPrefix+token, data, ttl).Err()
}

func (r *RedisVerificationStore) Get(ctx context.Context, token string) (*VerificationEntry, bool, error) {
	data, err := r.client.Get(ctx, verificationKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var entry VerificationEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode verification entry: %w", err)
	}
	return &entry, true, nil
}

func (r *RedisVerificationStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, verificationKeyPrefix+token).Err()
}

func (r *RedisVerificationStore) Cleanup(context.Context) (int, error) {
	return 0, nil
}

func (r *RedisVerificationStore) Stats(ctx context.Context) (VerificationStats, error) {
	stats := VerificationStats{Backend: "redis"}
	iter := r.client.Scan(ctx, 0, verificationKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		stats.Total++
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}
	return stats, nil
}

// Close is a no-op; the client is owned and closed by main.
func (r *RedisVerificationStore) Close() error {
	return nil
}
