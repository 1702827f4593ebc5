package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Profile is the account record the API returns at login and on profile
// fetches.
type Profile struct {
	Id             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Wallet         string `json:"wallet"`
	ReferralCode   string `json:"referralCode"`
	MembershipTier string `json:"membershipTier"`
	CreatedAt      string `json:"createdAt"`
}

// Store keeps the auth token and profile between runs. Implementations must
// clear corrupted state instead of returning it.
type Store interface {
	Save(ctx context.Context, token string, profile Profile) error
	Load(ctx context.Context) (token string, profile Profile, err error)
	Clear(ctx context.Context) error
	IsLoggedIn(ctx context.Context) bool
}

var ErrNoSession = errors.New("no active session")

type persisted struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// RedisStore persists the session under a fixed key with a TTL matching the
// token lifetime.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "chainshop:session"
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, token string, profile Profile) error {
	raw, err := json.Marshal(persisted{Token: token, Profile: profile})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, raw, s.ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context) (string, Profile, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", Profile{}, ErrNoSession
	}
	if err != nil {
		return "", Profile{}, err
	}
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil || p.Token == "" {
		// Corrupted or partial state is worse than none.
		s.rdb.Del(ctx, s.key)
		return "", Profile{}, fmt.Errorf("corrupted session cleared: %w", errOrEmpty(err))
	}
	return p.Token, p.Profile, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

func (s *RedisStore) IsLoggedIn(ctx context.Context) bool {
	token, _, err := s.Load(ctx)
	return err == nil && token != ""
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return errors.New("empty token")
}

// MemoryStore is the in-process fallback used by tests and by runs without
// redis configured.
type MemoryStore struct {
	mu  sync.RWMutex
	raw []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, token string, profile Profile) error {
	raw, err := json.Marshal(persisted{Token: token, Profile: profile})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (string, Profile, error) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()
	if raw == nil {
		return "", Profile{}, ErrNoSession
	}
	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil || p.Token == "" {
		s.mu.Lock()
		s.raw = nil
		s.mu.Unlock()
		return "", Profile{}, fmt.Errorf("corrupted session cleared: %w", errOrEmpty(err))
	}
	return p.Token, p.Profile, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.raw = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IsLoggedIn(ctx context.Context) bool {
	token, _, err := s.Load(ctx)
	return err == nil && token != ""
}

// Corrupt force-writes raw bytes, letting tests exercise the recovery path.
func (s *MemoryStore) Corrupt(raw []byte) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// Manager ties the store to the rest of the client: login saves, 401/403
// handling clears, and the current profile is cached for cheap reads.
type Manager struct {
	store Store

	mu      sync.RWMutex
	token   string
	profile Profile
	active  bool
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Restore loads any persisted session into memory. A missing session is not
// an error; a corrupted one has already been cleared by the store.
func (m *Manager) Restore(ctx context.Context) error {
	token, profile, err := m.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.token, m.profile, m.active = token, profile, true
	m.mu.Unlock()
	return nil
}

func (m *Manager) Establish(ctx context.Context, token string, profile Profile) error {
	m.mu.Lock()
	m.token, m.profile, m.active = token, profile, true
	m.mu.Unlock()
	return m.store.Save(ctx, token, profile)
}

func (m *Manager) UpdateProfile(ctx context.Context, profile Profile) error {
	m.mu.Lock()
	m.profile = profile
	token := m.token
	m.mu.Unlock()
	return m.store.Save(ctx, token, profile)
}

func (m *Manager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	m.token, m.profile, m.active = "", Profile{}, false
	m.mu.Unlock()
	return m.store.Clear(ctx)
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) Profile() (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile, m.active
}

func (m *Manager) IsLoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active && m.token != ""
}
