package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MockClient is an in-memory Client for tests. TTLs are recorded, not enforced.
type MockClient struct {
	mu     sync.Mutex
	Values map[string]string
	Hashes map[string]map[string]string
	TTLs   map[string]time.Duration

	// SetErr, GetErr and ActivityErr force failures on the respective calls when non-nil
	SetErr      error
	GetErr      error
	ActivityErr error
}

// NewMockClient creates an empty mock client
func NewMockClient() *MockClient {
	return &MockClient{
		Values: make(map[string]string),
		Hashes: make(map[string]map[string]string),
		TTLs:   make(map[string]time.Duration),
	}
}

func (m *MockClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	switch v := value.(type) {
	case string:
		m.Values[key] = v
	case []byte:
		m.Values[key] = string(v)
	default:
		m.Values[key] = fmt.Sprint(v)
	}
	m.TTLs[key] = ttl
	return nil
}

func (m *MockClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.Values[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	return v, nil
}

func (m *MockClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.Values, k)
		delete(m.Hashes, k)
		delete(m.TTLs, k)
	}
	return nil
}

func (m *MockClient) RecordActivity(ctx context.Context, userID, kind string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ActivityErr != nil {
		return m.ActivityErr
	}

	delete(m.Values, ProfileKey(userID))

	key := UserActivityKey(userID)
	h, ok := m.Hashes[key]
	if !ok {
		h = make(map[string]string)
		m.Hashes[key] = h
	}
	h[FieldLastInteraction] = strconv.FormatInt(at.UnixMilli(), 10)
	current, _ := strconv.ParseInt(h[kind], 10, 64)
	h[kind] = strconv.FormatInt(current+1, 10)
	m.TTLs[key] = ttl
	return nil
}

func (m *MockClient) Ping(ctx context.Context) error { return nil }

func (m *MockClient) Close() error { return nil }
