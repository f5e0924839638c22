package fleet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/store"
	"github.com/gauravpandeydigilantern/eims-demo-sub000/pkg/models"
)

// Store persists the last known device snapshot so a restarted
// dashboard can serve stale-but-present data before the first backend
// fetch completes. The snapshot is replaced wholesale, never merged.
type Store struct {
	db *store.SQLiteStore
}

// NewStore runs migrations and returns the snapshot store.
func NewStore(ctx context.Context, db *store.SQLiteStore) (*Store, error) {
	if err := db.Migrate(ctx, "fleet", migrations()); err != nil {
		return nil, fmt.Errorf("fleet migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveDevices replaces the persisted snapshot in one transaction.
func (s *Store) SaveDevices(ctx context.Context, devices []models.Device, fetchedAt time.Time) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fleet_devices"); err != nil {
			return fmt.Errorf("clear devices: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO fleet_devices (id, payload) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i := range devices {
			payload, err := json.Marshal(&devices[i])
			if err != nil {
				return fmt.Errorf("marshal device %s: %w", devices[i].ID, err)
			}
			if _, err := stmt.ExecContext(ctx, devices[i].ID, string(payload)); err != nil {
				return fmt.Errorf("insert device %s: %w", devices[i].ID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO fleet_snapshot_meta (id, fetched_at) VALUES (1, ?)
			ON CONFLICT (id) DO UPDATE SET fetched_at = excluded.fetched_at`,
			fetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("update snapshot meta: %w", err)
		}
		return nil
	})
}

// LoadDevices returns the persisted snapshot, or (nil, zero time, nil)
// when none has been saved yet.
func (s *Store) LoadDevices(ctx context.Context) ([]models.Device, time.Time, error) {
	var fetchedAt time.Time
	err := s.db.DB().QueryRowContext(ctx,
		"SELECT fetched_at FROM fleet_snapshot_meta WHERE id = 1",
	).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query snapshot meta: %w", err)
	}

	rows, err := s.db.DB().QueryContext(ctx,
		"SELECT payload FROM fleet_devices ORDER BY id")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan device: %w", err)
		}
		var d models.Device
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, time.Time{}, fmt.Errorf("unmarshal device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, fetchedAt, rows.Err()
}
