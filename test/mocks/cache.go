package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/cache"
)

// MockSortedSet is an in-memory mock of the Redis sorted sets used by the leaderboard.
// Used for testing without requiring a real Redis instance
type MockSortedSet struct {
	sets map[string]map[string]float64
	// Err, when set, is returned by every call to simulate an unavailable Redis.
	Err error
	mu  sync.RWMutex
}

// NewMockSortedSet creates a new mock sorted set store
func NewMockSortedSet() *MockSortedSet {
	return &MockSortedSet{
		sets: make(map[string]map[string]float64),
	}
}

// RaiseScore sets a member's score, never lowering an existing one (like ZADD GT)
func (m *MockSortedSet) RaiseScore(ctx context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if m.sets[key] == nil {
		m.sets[key] = make(map[string]float64)
	}
	if current, exists := m.sets[key][member]; !exists || score > current {
		m.sets[key][member] = score
	}
	return nil
}

// Remove deletes members from a sorted set
func (m *MockSortedSet) Remove(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, member := range members {
		delete(m.sets[key], member)
	}
	return nil
}

// Top returns the highest scored members, best first
func (m *MockSortedSet) Top(ctx context.Context, key string, limit int) ([]cache.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	ranked := m.ranked(key)
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Rank returns the 0-based position and score of a member
func (m *MockSortedSet) Rank(ctx context.Context, key, member string) (int64, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return 0, 0, m.Err
	}
	for i, entry := range m.ranked(key) {
		if entry.Name == member {
			return int64(i), entry.Score, nil
		}
	}
	return 0, 0, cache.ErrMiss
}

// Size returns the number of members in a sorted set
func (m *MockSortedSet) Size(ctx context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return 0, m.Err
	}
	return int64(len(m.sets[key])), nil
}

// Replace swaps the contents of a sorted set
func (m *MockSortedSet) Replace(ctx context.Context, key string, members []cache.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	set := make(map[string]float64, len(members))
	for _, member := range members {
		set[member.Name] = member.Score
	}
	m.sets[key] = set
	return nil
}

// ranked orders members by score, ties broken by reverse name like ZREVRANGE.
func (m *MockSortedSet) ranked(key string) []cache.Member {
	members := make([]cache.Member, 0, len(m.sets[key]))
	for name, score := range m.sets[key] {
		members = append(members, cache.Member{Name: name, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Name > members[j].Name
	})
	return members
}
