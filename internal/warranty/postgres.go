package warranty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the part of a Postgres pool the store needs. It is implemented by
// *pgxpool.Pool and by pgxmock pools.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresDB implements the DB interface on a hosted PostgreSQL database
type PostgresDB struct {
	pool PgxPool
}

// NewPostgresDB connects a pool for the given DSN
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewPostgresDBWithPool(pool), nil
}

// NewPostgresDBWithPool wraps an existing pool
func NewPostgresDBWithPool(pool PgxPool) *PostgresDB {
	return &PostgresDB{pool: pool}
}

const deviceColumns = `id, owner_id, brand_name, category, device_serial, warranty_period, purchase_date,
expiry_date, free_service_dates, helpline_number, invoice_number, service_receipt, bill_file,
bill_content_type, created_at`

// pgErr tags insufficient_privilege so callers can tell access faults apart
func pgErr(err error) error {
	var pg *pgconn.PgError
	if errors.As(err, &pg) && pg.Code == "42501" {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}

// SaveDevice inserts a device row
func (p *PostgresDB) SaveDevice(ctx context.Context, d *Device) error {
	const q = `INSERT INTO devices (` + deviceColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := p.pool.Exec(ctx, q,
		d.ID, d.OwnerID, d.BrandName, d.Category, d.DeviceSerial, d.WarrantyPeriod, d.PurchaseDate,
		d.ExpiryDate, d.FreeServiceDates, d.HelplineNumber, d.InvoiceNumber, d.ServiceReceipt, d.BillFile,
		d.BillContentType, d.CreatedAt)
	return pgErr(err)
}

// GetDevice selects one of the owner's devices
func (p *PostgresDB) GetDevice(ctx context.Context, ownerID, id string) (*Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE id=$1 AND owner_id=$2`
	d, err := scanDevice(p.pool.QueryRow(ctx, q, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, pgErr(err)
	}
	return d, nil
}

// ListDevices selects the owner's devices, newest first
func (p *PostgresDB) ListDevices(ctx context.Context, ownerID string) ([]*Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id=$1 ORDER BY created_at DESC`
	return p.query(ctx, q, ownerID)
}

// FindBySerial selects the owner's devices with this serial
func (p *PostgresDB) FindBySerial(ctx context.Context, ownerID, serial string) ([]*Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE owner_id=$1 AND device_serial=$2 ORDER BY created_at DESC`
	return p.query(ctx, q, ownerID, serial)
}

func (p *PostgresDB) query(ctx context.Context, q string, args ...any) ([]*Device, error) {
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, pgErr(err)
	}
	defer rows.Close()

	devices := make([]*Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, pgErr(err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr(err)
	}
	return devices, nil
}

// DeleteDevice removes one of the owner's devices
func (p *PostgresDB) DeleteDevice(ctx context.Context, ownerID, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM devices WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return pgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.OwnerID, &d.BrandName, &d.Category, &d.DeviceSerial, &d.WarrantyPeriod,
		&d.PurchaseDate, &d.ExpiryDate, &d.FreeServiceDates, &d.HelplineNumber, &d.InvoiceNumber,
		&d.ServiceReceipt, &d.BillFile, &d.BillContentType, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if d.FreeServiceDates == nil {
		d.FreeServiceDates = []string{}
	}
	return &d, nil
}
