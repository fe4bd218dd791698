package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresRepo persists destinations in a single table with the inventory
// map stored as JSONB. No foreign keys reference this table; dangling
// destination ids elsewhere are tolerated at read time.
//
// Assumed schema (see EnsureSchema):
//   destinations(id TEXT PRIMARY KEY, name, phone, address, hours, category,
//                location_key, inventory JSONB, created_at, seq BIGSERIAL)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureSchema creates the destinations table if it does not exist.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS destinations (
    seq          BIGSERIAL,
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    phone        TEXT NOT NULL,
    address      TEXT NOT NULL DEFAULT '',
    hours        TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT 'general',
    location_key TEXT NOT NULL DEFAULT '',
    inventory    JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at   TIMESTAMPTZ NOT NULL
)
`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("directory: ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Destination, error) {
	const q = `
SELECT id, name, phone, address, hours, category, location_key, inventory, created_at
FROM destinations
ORDER BY seq
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Destination, error) {
	const q = `
SELECT id, name, phone, address, hours, category, location_key, inventory, created_at
FROM destinations
WHERE id = $1
`
	d, err := scanDestination(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Destination{}, ErrNotFound
		}
		return Destination{}, err
	}
	return d, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, d Destination) error {
	inv, err := marshalInventory(d.Inventory)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO destinations (id, name, phone, address, hours, category, location_key, inventory, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    phone = EXCLUDED.phone,
    address = EXCLUDED.address,
    hours = EXCLUDED.hours,
    category = EXCLUDED.category,
    location_key = EXCLUDED.location_key,
    inventory = EXCLUDED.inventory
`
	_, err = r.db.ExecContext(ctx, q,
		d.ID, d.Name, d.Phone, d.Address, d.Hours, d.Category, d.LocationKey, inv, d.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) SetAvailability(ctx context.Context, destinationID, medicationKey string, rec AvailabilityRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// jsonb_set with a single-element path upserts the medication key.
	const q = `
UPDATE destinations
SET inventory = jsonb_set(inventory, ARRAY[$2], $3::jsonb, true)
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, destinationID, medicationKey, string(raw))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDestination(row rowScanner) (Destination, error) {
	var d Destination
	var inv []byte
	var createdAt time.Time
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Phone,
		&d.Address,
		&d.Hours,
		&d.Category,
		&d.LocationKey,
		&inv,
		&createdAt,
	); err != nil {
		return Destination{}, err
	}
	d.CreatedAt = createdAt
	if len(inv) > 0 {
		if err := json.Unmarshal(inv, &d.Inventory); err != nil {
			return Destination{}, fmt.Errorf("directory: decode inventory for %s: %w", d.ID, err)
		}
	}
	return d, nil
}

func marshalInventory(inv map[string]AvailabilityRecord) ([]byte, error) {
	if inv == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(inv)
}
