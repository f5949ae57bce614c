package booking

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Create(ctx context.Context, b *models.Booking) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO bookings(id, renter_id, host_id, car_id, status, start_date, end_date, total_price, currency, paid, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.RenterID, b.HostID, b.CarID, b.Status, b.StartDate, b.EndDate, b.TotalPrice, b.Currency, b.Paid, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	for _, c := range b.Timeline {
		if _, err := tx.ExecContext(ctx, `INSERT INTO booking_status_events(booking_id, status, changed_at, note) VALUES($1,$2,$3,$4)`,
			b.ID, c.Status, c.ChangedAt, c.Note); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := p.db.QueryRowContext(ctx, `SELECT id, renter_id, host_id, car_id, status, start_date, end_date, total_price, currency, paid, created_at, updated_at FROM bookings WHERE id=$1`, id).
		Scan(&b.ID, &b.RenterID, &b.HostID, &b.CarID, &b.Status, &b.StartDate, &b.EndDate, &b.TotalPrice, &b.Currency, &b.Paid, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT status, changed_at, COALESCE(note,'') FROM booking_status_events WHERE booking_id=$1 ORDER BY changed_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.StatusChange
		if err := rows.Scan(&c.Status, &c.ChangedAt, &c.Note); err != nil {
			return nil, err
		}
		b.Timeline = append(b.Timeline, c)
	}
	return &b, rows.Err()
}

// Update applies the transition only if the row still holds prev; the status
// event table is insert-only.
func (p *PostgresStore) Update(ctx context.Context, b *models.Booking, prev models.BookingStatus, change models.StatusChange) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`,
		b.Status, b.UpdatedAt, b.ID, prev)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStale
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO booking_status_events(booking_id, status, changed_at, note) VALUES($1,$2,$3,$4)`,
		b.ID, change.Status, change.ChangedAt, change.Note); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) ListByRenter(ctx context.Context, renterID string) ([]*models.Booking, error) {
	return p.list(ctx, `SELECT id, renter_id, host_id, car_id, status, start_date, end_date, total_price, currency, paid, created_at, updated_at FROM bookings WHERE renter_id=$1 ORDER BY created_at DESC`, renterID)
}

func (p *PostgresStore) ListByHost(ctx context.Context, hostID string) ([]*models.Booking, error) {
	return p.list(ctx, `SELECT id, renter_id, host_id, car_id, status, start_date, end_date, total_price, currency, paid, created_at, updated_at FROM bookings WHERE host_id=$1 ORDER BY created_at DESC`, hostID)
}

func (p *PostgresStore) list(ctx context.Context, query, arg string) ([]*models.Booking, error) {
	rows, err := p.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RenterID, &b.HostID, &b.CarID, &b.Status, &b.StartDate, &b.EndDate, &b.TotalPrice, &b.Currency, &b.Paid, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
