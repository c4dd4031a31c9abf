package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/schema"
)

// Memory is an in-memory implementation of the catalog source and record
// store, used by dry-run imports and tests. It enforces the same
// document-number uniqueness a database constraint would.
type Memory struct {
	mu      sync.Mutex
	cat     *catalog.Catalog
	created map[string]ingest.Resolved // keyed by normalized document number
}

// NewMemory creates a Memory store over a fixed catalog snapshot.
func NewMemory(cat *catalog.Catalog) *Memory {
	if cat.UsedKeys == nil {
		cat.UsedKeys = make(map[string]bool)
	}
	return &Memory{cat: cat, created: make(map[string]ingest.Resolved)}
}

// LoadCatalog returns the snapshot regardless of tenant.
func (m *Memory) LoadCatalog(context.Context, uuid.UUID) (*catalog.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cat, nil
}

// CreateRecord stores the record, rejecting duplicate document numbers.
func (m *Memory) CreateRecord(_ context.Context, _ uuid.UUID, rec ingest.Resolved) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := schema.NormalizeKey(rec.DocumentNumber)
	if _, exists := m.created[key]; exists || m.cat.UsedKeys[key] {
		return uuid.Nil, fmt.Errorf("document %q already exists", rec.DocumentNumber)
	}
	m.created[key] = rec
	return uuid.New(), nil
}

// Created returns how many records have been stored.
func (m *Memory) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

var _ catalog.Source = (*Memory)(nil)
var _ ingest.RecordStore = (*Memory)(nil)
