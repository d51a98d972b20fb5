package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps player data in process memory.
type MemoryStore struct {
	data map[string]map[string]string
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, player, key string) (string, bool, error) {
	if err := checkPlayer(player); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[player][key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, player, key, value string) error {
	if err := checkPlayer(player); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if value == "" {
		delete(m.data[player], key)
		if len(m.data[player]) == 0 {
			delete(m.data, player)
		}
		return nil
	}

	bag, ok := m.data[player]
	if !ok {
		bag = make(map[string]string)
		m.data[player] = bag
	}
	bag[key] = value
	return nil
}

func (m *MemoryStore) Players(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	players := make([]string, 0, len(m.data))
	for p := range m.data {
		players = append(players, p)
	}
	sort.Strings(players)
	return players, nil
}

func (m *MemoryStore) Check(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
