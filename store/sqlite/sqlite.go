/*
Package sqlite provides a SQLite-backed implementation of the read-model
and audit interfaces.

PURPOSE:
  Implements the collaborators the engine consumes - material master data,
  customer contracts, inventory batches, live stock levels - plus the
  append-only override audit log. In production the same patterns apply
  to PostgreSQL; only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  preview.MaterialSource:  Material lookup
  preview.ContractSource:  Contract-per-customer lookup (JSON via factory)
  inventory.StockLedger:   Ordered batches + live stock aggregate

READ-ONLY DOMAIN DATA:
  Materials, contracts and batches are owned by external systems (catalog,
  contract management, procurement). The Save* methods exist for seeding
  and synchronization, not for the pricing engine's own flow - nothing in
  the engine mutates them during an order session.

FIFO ORDERING:
  Batches are returned ORDER BY purchase_date ASC, batch_number ASC. The
  allocation simulator depends on this ordering; it is enforced here, in
  one place, by SQL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

MIGRATIONS:
  Schema is versioned with goose and embedded in the binary; New() brings
  the database up to date.

USAGE:
  store, err := sqlite.New("./data/pricing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - inventory/types.go: StockLedger interface
  - factory/contract.go: JSON contract parsing
  - inventory/store/memory.go: In-memory ledger for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/factory"
	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/pricing"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements the read-model and audit interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.ContractFactory
}

// New creates a SQLite store at the given path and runs pending
// migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, factory: factory.NewContractFactory()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// =============================================================================
// MATERIALS
// =============================================================================

// SaveMaterial upserts a material (seeding / catalog sync).
func (s *Store) SaveMaterial(ctx context.Context, m pricing.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO materials (id, name, unit, standard_price, category, reorder_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			standard_price = excluded.standard_price,
			category = excluded.category,
			reorder_level = excluded.reorder_level,
			updated_at = excluded.updated_at`,
		string(m.ID), m.Name, m.Unit, m.StandardPrice.String(), m.Category,
		m.ReorderLevel.String(), now, now)
	return err
}

// Material returns one material. Implements preview.MaterialSource.
func (s *Store) Material(ctx context.Context, id pricing.MaterialID) (pricing.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, standard_price, category, reorder_level
		FROM materials WHERE id = ?`, string(id))

	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Material{}, fmt.Errorf("material %s: %w", id, pricing.ErrMaterialNotFound)
	}
	return m, err
}

// ListMaterials returns all materials ordered by name.
func (s *Store) ListMaterials(ctx context.Context) ([]pricing.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, standard_price, category, reorder_level
		FROM materials ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row scanner) (pricing.Material, error) {
	var (
		m                   pricing.Material
		id                  string
		priceStr, reorderStr string
	)
	if err := row.Scan(&id, &m.Name, &m.Unit, &priceStr, &m.Category, &reorderStr); err != nil {
		return pricing.Material{}, err
	}
	m.ID = pricing.MaterialID(id)

	var err error
	if m.StandardPrice, err = decimal.NewFromString(priceStr); err != nil {
		return pricing.Material{}, fmt.Errorf("material %s: bad standard_price %q: %w", id, priceStr, err)
	}
	if m.ReorderLevel, err = decimal.NewFromString(reorderStr); err != nil {
		return pricing.Material{}, fmt.Errorf("material %s: bad reorder_level %q: %w", id, reorderStr, err)
	}
	return m, nil
}

// =============================================================================
// CONTRACTS
// =============================================================================

// SaveContract stores a contract's JSON definition. The JSON is validated
// through the factory before it is accepted.
func (s *Store) SaveContract(ctx context.Context, configJSON string) (*pricing.Contract, error) {
	contract, err := s.factory.ParseContract(configJSON)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, customer_id, status, start_date, end_date, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_id = excluded.customer_id,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at`,
		string(contract.ID), string(contract.CustomerID), string(contract.Status),
		contract.StartDate.Format("2006-01-02"), contract.EndDate.Format("2006-01-02"),
		configJSON, now, now)
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// ContractFor returns the customer's contract, nil when none exists.
// Implements preview.ContractSource. Activity is NOT evaluated here -
// the resolver owns that - so expired contracts still come back and can
// produce the "expired, using market rate" signal.
func (s *Store) ContractFor(ctx context.Context, customerID pricing.CustomerID) (*pricing.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT config_json FROM contracts
		WHERE customer_id = ?
		ORDER BY updated_at DESC LIMIT 1`, string(customerID)).Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return s.factory.ParseContract(configJSON)
}

// =============================================================================
// BATCHES / STOCK LEDGER
// =============================================================================

// SaveBatch upserts a batch (seeding / procurement sync).
func (s *Store) SaveBatch(ctx context.Context, b inventory.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (material_id, batch_number, purchase_date, quantity_available, unit_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(material_id, batch_number) DO UPDATE SET
			purchase_date = excluded.purchase_date,
			quantity_available = excluded.quantity_available,
			unit_cost = excluded.unit_cost`,
		string(b.MaterialID), b.BatchNumber, b.PurchaseDate.Format("2006-01-02"),
		b.QuantityAvailable.String(), b.UnitCost.String(), now)
	return err
}

// Batches returns available batches oldest purchase first. Implements
// inventory.StockLedger. Batches at zero are filtered - they can supply
// nothing and only slow the walk.
func (s *Store) Batches(ctx context.Context, materialID pricing.MaterialID) ([]inventory.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT material_id, batch_number, purchase_date, quantity_available, unit_cost
		FROM batches
		WHERE material_id = ? AND CAST(quantity_available AS REAL) > 0
		ORDER BY purchase_date ASC, batch_number ASC`, string(materialID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Batch
	for rows.Next() {
		var (
			b                 inventory.Batch
			id, dateStr       string
			qtyStr, costStr   string
		)
		if err := rows.Scan(&id, &b.BatchNumber, &dateStr, &qtyStr, &costStr); err != nil {
			return nil, err
		}
		b.MaterialID = pricing.MaterialID(id)
		if b.PurchaseDate, err = time.Parse("2006-01-02", dateStr); err != nil {
			return nil, fmt.Errorf("batch %s/%s: bad purchase_date %q: %w", id, b.BatchNumber, dateStr, err)
		}
		if b.QuantityAvailable, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("batch %s/%s: bad quantity %q: %w", id, b.BatchNumber, qtyStr, err)
		}
		if b.UnitCost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("batch %s/%s: bad unit_cost %q: %w", id, b.BatchNumber, costStr, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CurrentStock returns the live aggregate position. Implements
// inventory.StockLedger. Distinct from the FIFO simulation: this is the
// indicator shown while editing, before any allocation runs.
func (s *Store) CurrentStock(ctx context.Context, materialID pricing.MaterialID) (inventory.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unit, reorderStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT unit, reorder_level FROM materials WHERE id = ?`,
		string(materialID)).Scan(&unit, &reorderStr)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.StockLevel{}, fmt.Errorf("material %s: %w", materialID, pricing.ErrMaterialNotFound)
	}
	if err != nil {
		return inventory.StockLevel{}, err
	}

	// COALESCE: a material with no batches has zero stock, not NULL.
	var total float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CAST(quantity_available AS REAL)), 0)
		FROM batches WHERE material_id = ?`, string(materialID)).Scan(&total)
	if err != nil {
		return inventory.StockLevel{}, err
	}

	level := inventory.StockLevel{Unit: unit, CurrentStock: decimal.NewFromFloat(total)}
	if level.ReorderLevel, err = decimal.NewFromString(reorderStr); err != nil {
		return inventory.StockLevel{}, fmt.Errorf("material %s: bad reorder_level %q: %w", materialID, reorderStr, err)
	}
	return level, nil
}

// =============================================================================
// OVERRIDE AUDIT - Append-only
// =============================================================================

// OverrideAuditEntry is one persisted override approval.
type OverrideAuditEntry struct {
	Record   pricing.OverrideRecord
	OrderRef string
}

// RecordOverride appends an approved override to the audit log. No
// update or delete path exists for this table.
func (s *Store) RecordOverride(ctx context.Context, rec pricing.OverrideRecord, orderRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO override_audit (id, material_id, original_rate, override_rate, reason, approved_by, approved_at, order_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.MaterialID), rec.OriginalRate.String(), rec.OverrideRate.String(),
		rec.Reason, rec.ApprovedBy, rec.ApprovedAt.UTC().Format(time.RFC3339),
		orderRef, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListOverrides returns audit entries, newest approval first, optionally
// filtered by material.
func (s *Store) ListOverrides(ctx context.Context, materialID pricing.MaterialID) ([]OverrideAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, material_id, original_rate, override_rate, reason, approved_by, approved_at, order_ref
		FROM override_audit`
	args := []any{}
	if materialID != "" {
		query += ` WHERE material_id = ?`
		args = append(args, string(materialID))
	}
	query += ` ORDER BY approved_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverrideAuditEntry
	for rows.Next() {
		var (
			e                    OverrideAuditEntry
			matID                string
			origStr, overStr     string
			approvedAtStr        string
		)
		if err := rows.Scan(&e.Record.ID, &matID, &origStr, &overStr,
			&e.Record.Reason, &e.Record.ApprovedBy, &approvedAtStr, &e.OrderRef); err != nil {
			return nil, err
		}
		e.Record.MaterialID = pricing.MaterialID(matID)
		if e.Record.OriginalRate, err = decimal.NewFromString(origStr); err != nil {
			return nil, fmt.Errorf("override %s: bad original_rate %q: %w", e.Record.ID, origStr, err)
		}
		if e.Record.OverrideRate, err = decimal.NewFromString(overStr); err != nil {
			return nil, fmt.Errorf("override %s: bad override_rate %q: %w", e.Record.ID, overStr, err)
		}
		if e.Record.ApprovedAt, err = time.Parse(time.RFC3339, approvedAtStr); err != nil {
			return nil, fmt.Errorf("override %s: bad approved_at %q: %w", e.Record.ID, approvedAtStr, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RESET (scenario loading, dev only)
// =============================================================================

// Reset clears all tables. Used by the demo scenario loader.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"override_audit", "batches", "contracts", "materials"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}
