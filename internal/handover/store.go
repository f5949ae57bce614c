package handover

import (
	"context"
	"database/sql"
	"sync"

	"github.com/lib/pq"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/models"
)

// RecordStore persists handover records. Records are immutable once the
// transition they gate has gone through; Delete exists only to discard a
// record whose transition was rejected.
type RecordStore interface {
	Save(ctx context.Context, r *models.HandoverRecord) error
	Delete(ctx context.Context, id string) error
	ListByBooking(ctx context.Context, bookingID string) ([]*models.HandoverRecord, error)
}

type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.HandoverRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*models.HandoverRecord)}
}

func (m *MemoryRecordStore) Save(ctx context.Context, r *models.HandoverRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	cp.PhotoRefs = append([]string(nil), r.PhotoRefs...)
	m.records[r.ID] = &cp
	return nil
}

func (m *MemoryRecordStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryRecordStore) ListByBooking(ctx context.Context, bookingID string) ([]*models.HandoverRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.HandoverRecord
	for _, r := range m.records {
		if r.BookingID == bookingID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (p *PostgresRecordStore) Save(ctx context.Context, r *models.HandoverRecord) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO handover_records(id, booking_id, step, photo_refs, completed_at) VALUES($1,$2,$3,$4,$5)`,
		r.ID, r.BookingID, r.Step, pq.Array(r.PhotoRefs), r.CompletedAt)
	return err
}

func (p *PostgresRecordStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM handover_records WHERE id=$1`, id)
	return err
}

func (p *PostgresRecordStore) ListByBooking(ctx context.Context, bookingID string) ([]*models.HandoverRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, booking_id, step, photo_refs, completed_at FROM handover_records WHERE booking_id=$1 ORDER BY completed_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.HandoverRecord
	for rows.Next() {
		var r models.HandoverRecord
		if err := rows.Scan(&r.ID, &r.BookingID, &r.Step, pq.Array(&r.PhotoRefs), &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
