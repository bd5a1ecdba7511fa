package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Memory is a mutex-guarded in-memory Store. It backs the CLI one-shot mode
// and the engine tests; the server uses Postgres.
type Memory struct {
	mu       sync.RWMutex
	products map[string]models.Product // by ID
	byURL    map[string]string         // URL -> ID
	settings *models.Settings
	logs     []models.LogEntry // newest first
	logCap   int
}

// NewMemory creates an empty in-memory store with the given log cap.
func NewMemory(logCap int) *Memory {
	if logCap <= 0 {
		logCap = 500
	}
	return &Memory{
		products: make(map[string]models.Product),
		byURL:    make(map[string]string),
		logCap:   logCap,
	}
}

func (m *Memory) LoadProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) GetProductByURL(ctx context.Context, url string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byURL[url]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.products[id]
	return &p, nil
}

func (m *Memory) AddProduct(ctx context.Context, p models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byURL[p.URL]; dup {
		return ErrDuplicateURL
	}
	m.products[p.ID] = p
	m.byURL[p.URL] = p.ID
	return nil
}

func (m *Memory) SaveProduct(ctx context.Context, p models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	if old.URL != p.URL {
		if _, dup := m.byURL[p.URL]; dup {
			return ErrDuplicateURL
		}
		delete(m.byURL, old.URL)
		m.byURL[p.URL] = p.ID
	}
	m.products[p.ID] = p
	return nil
}

func (m *Memory) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byURL, p.URL)
	delete(m.products, id)
	return nil
}

func (m *Memory) LoadSettings(ctx context.Context) (models.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *Memory) SaveSettings(ctx context.Context, s models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Memory) AppendLog(ctx context.Context, e models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append([]models.LogEntry{e}, m.logs...)
	if len(m.logs) > m.logCap {
		m.logs = m.logs[:m.logCap]
	}
	return nil
}

func (m *Memory) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.logs) {
		limit = len(m.logs)
	}
	out := make([]models.LogEntry, limit)
	copy(out, m.logs[:limit])
	return out, nil
}

func (m *Memory) ReplaceAll(ctx context.Context, b *models.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	products := make(map[string]models.Product, len(b.Products))
	byURL := make(map[string]string, len(b.Products))
	for _, p := range b.Products {
		products[p.ID] = p
		byURL[p.URL] = p.ID
	}
	m.products = products
	m.byURL = byURL
	s := b.Settings
	m.settings = &s
	return nil
}
