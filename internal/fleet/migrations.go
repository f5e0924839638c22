package fleet

import (
	"database/sql"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/store"
)

// migrations define the warm-start snapshot schema.
func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create fleet snapshot tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS fleet_devices (
						id      TEXT PRIMARY KEY,
						payload TEXT NOT NULL
					);
					CREATE TABLE IF NOT EXISTS fleet_snapshot_meta (
						id         INTEGER PRIMARY KEY CHECK (id = 1),
						fetched_at DATETIME NOT NULL
					);
				`)
				return err
			},
		},
	}
}
