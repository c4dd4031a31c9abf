// Package store provides the backing implementations of the pipeline's
// collaborator interfaces: the reference-catalog source (read, once per
// session) and the record store (write, once per committed row).
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/schema"
)

// Store is the PostgreSQL-backed implementation.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over a connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadCatalog loads the tenant's full reference snapshot. Row order follows
// creation order, which is the tie-break order the resolver relies on.
func (s *Store) LoadCatalog(ctx context.Context, tenantID uuid.UUID) (*catalog.Catalog, error) {
	cat := &catalog.Catalog{UsedKeys: make(map[string]bool)}

	var err error
	if cat.Counterparties, err = s.loadEntries(ctx,
		`SELECT id, tax_id, name FROM counterparties WHERE tenant_id = $1 ORDER BY created_at, id`,
		tenantID); err != nil {
		return nil, fmt.Errorf("load counterparties: %w", err)
	}
	if cat.Units, err = s.loadEntries(ctx,
		`SELECT id, unit_code, name FROM equipment_units WHERE tenant_id = $1 ORDER BY created_at, id`,
		tenantID); err != nil {
		return nil, fmt.Errorf("load equipment units: %w", err)
	}
	if cat.Personnel, err = s.loadEntries(ctx,
		`SELECT id, employee_code, full_name FROM personnel WHERE tenant_id = $1 ORDER BY created_at, id`,
		tenantID); err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	if cat.Categories, err = s.loadEntries(ctx,
		`SELECT id, code, name FROM service_categories WHERE tenant_id = $1 ORDER BY sort_order, created_at, id`,
		tenantID); err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT document_number FROM service_orders WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load used document numbers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan document number: %w", err)
		}
		cat.UsedKeys[schema.NormalizeKey(key)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load used document numbers: %w", err)
	}

	return cat, nil
}

func (s *Store) loadEntries(ctx context.Context, query string, tenantID uuid.UUID) ([]catalog.Entry, error) {
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var id pgtype.UUID
		var key, name pgtype.Text
		if err := rows.Scan(&id, &key, &name); err != nil {
			return nil, err
		}
		entries = append(entries, catalog.Entry{
			ID:          uuid.UUID(id.Bytes),
			NaturalKey:  key.String,
			DisplayName: name.String,
		})
	}
	return entries, rows.Err()
}

// CreateRecord inserts one resolved service order and returns its new ID.
// Calls are independent: no transaction spans rows, and a unique-constraint
// rejection here only fails this row.
func (s *Store) CreateRecord(ctx context.Context, tenantID uuid.UUID, rec ingest.Resolved) (uuid.UUID, error) {
	categoryID := pgtype.UUID{Bytes: rec.CategoryID, Valid: rec.CategoryID != uuid.Nil}

	var id pgtype.UUID
	err := s.pool.QueryRow(ctx,
		`INSERT INTO service_orders
		   (tenant_id, document_number, request_date, counterparty_id,
		    unit_id, personnel_id, category_id, amount, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		tenantID,
		rec.DocumentNumber,
		pgtype.Date{Time: rec.RequestDate, Valid: true},
		rec.CounterpartyID,
		rec.UnitID,
		rec.PersonnelID,
		categoryID,
		rec.Amount,
		textOrNull(rec.Description),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert service order %q: %w", rec.DocumentNumber, err)
	}
	return uuid.UUID(id.Bytes), nil
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// Ping verifies database connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var _ catalog.Source = (*Store)(nil)
var _ ingest.RecordStore = (*Store)(nil)
