package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

const defaultSweepInterval = 10 * time.Minute

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL store. Expiry is checked on read, with a
// periodic sweep reclaiming entries nothing reads again. Two goroutines
// missing the same key may both recompute and both write; last write
// wins, which is acceptable for this cache's contract.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryItem
	now  func() time.Time
	done chan struct{}
}

// NewMemory starts a memory store with a background sweep.
func NewMemory() *Memory {
	m := &Memory{
		data: make(map[string]memoryItem),
		now:  time.Now,
		done: make(chan struct{}),
	}
	go m.sweepLoop(defaultSweepInterval)
	return m
}

// NewMemoryWithClock is NewMemory with an injected clock and no sweep
// goroutine. Tests use it to control expiry deterministically.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		data: make(map[string]memoryItem),
		now:  now,
		done: make(chan struct{}),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || m.now().After(item.expiresAt) {
		return nil, nil
	}
	return item.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.data[key] = memoryItem{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteByPrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	return nil
}

// Len reports live entry count, expired entries included until swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, item := range m.data {
				if now.After(item.expiresAt) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
