// Package catalog holds the read-only, session-scoped snapshot of lookup
// entities used to resolve loose external references, and the pure matching
// functions that do the resolving. Nothing here performs I/O; a Source
// implementation loads the snapshot once at session start.
package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/mkarlsen/opsimport/internal/schema"
)

// Entry is one lookup entity: a counterparty, equipment unit, personnel
// record, or service category.
type Entry struct {
	ID          uuid.UUID
	NaturalKey  string // tax ID, unit code, employee code, category code
	DisplayName string
}

// Catalog is the per-tenant snapshot. Slices keep catalog load order, which
// breaks match ties (first loaded wins). UsedKeys holds normalized natural
// keys of records that already exist, for duplicate rejection.
type Catalog struct {
	Counterparties []Entry
	Units          []Entry
	Personnel      []Entry
	Categories     []Entry
	UsedKeys       map[string]bool
}

// Source loads a tenant's catalog. Called once per import session; the
// returned snapshot is never mutated afterward.
type Source interface {
	LoadCatalog(ctx context.Context, tenantID uuid.UUID) (*Catalog, error)
}

// KeyUsed reports whether a natural key already exists in the tenant's
// record store, comparing normalized forms.
func (c *Catalog) KeyUsed(naturalKey string) bool {
	return c.UsedKeys[schema.NormalizeKey(naturalKey)]
}

// DefaultPolicy selects a fallback entry when an optional reference is
// absent or unmatched. Returns ok=false when no fallback is available.
type DefaultPolicy func(entries []Entry) (Entry, bool)

// FirstEntry is the default DefaultPolicy: the first catalog entry in load
// order. Kept as a policy value rather than hard-coded so deployments can
// substitute, say, an "Uncategorized" pick.
func FirstEntry(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}
