package store

import (
	"context"
	"sync"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// Memory is an in-memory ArticleStore for development and tests.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]pipeline.Article

	// FailWith, when set, is returned by every store operation.
	FailWith error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]pipeline.Article)}
}

// Preload marks URLs as already present in a table.
func (m *Memory) Preload(table string, urls ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)
	for _, u := range urls {
		t[u] = pipeline.Article{URL: u}
	}
}

// ListExistingURLs snapshots the keys of one table.
func (m *Memory) ListExistingURLs(_ context.Context, table string) (map[string]struct{}, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	existing := make(map[string]struct{}, len(m.tables[table]))
	for u := range m.tables[table] {
		existing[u] = struct{}{}
	}
	return existing, nil
}

// Upsert inserts unless the URL exists already.
func (m *Memory) Upsert(_ context.Context, table string, art pipeline.Article) (bool, error) {
	if m.FailWith != nil {
		return false, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table(table)
	if _, ok := t[art.URL]; ok {
		return false, nil
	}
	t[art.URL] = art
	return true, nil
}

// Get returns a stored article.
func (m *Memory) Get(table, url string) (pipeline.Article, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	art, ok := m.tables[table][url]
	return art, ok
}

// Count returns the number of rows in a table.
func (m *Memory) Count(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *Memory) table(name string) map[string]pipeline.Article {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]pipeline.Article)
		m.tables[name] = t
	}
	return t
}
