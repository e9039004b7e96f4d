package db

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DensitySnapshot summarises one grid evaluation.
type DensitySnapshot struct {
	SnapshotID  string          `json:"snapshot_id"`
	TakenUnixMs int64           `json:"taken_unix_ms"`
	Mode        string          `json:"mode"`
	PointCount  int             `json:"point_count"`
	GridSize    int             `json:"grid_size"`
	MaxDensity  float64         `json:"max_density"`
	MaxA1       float64         `json:"max_a1"`
	MaxA2       float64         `json:"max_a2"`
	MeanDensity float64         `json:"mean_density"`
	Config      json.RawMessage `json:"config"`
}

// InsertSnapshot stores s. An empty SnapshotID is filled with a new UUID.
func (db *DB) InsertSnapshot(s *DensitySnapshot) error {
	if s.SnapshotID == "" {
		s.SnapshotID = uuid.NewString()
	}
	cfg := s.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}

	query := `
		INSERT INTO density_snapshot (
			snapshot_id, taken_unix_ms, mode, point_count, grid_size,
			max_density, max_a1, max_a2, mean_density, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.DB.Exec(query,
		s.SnapshotID,
		s.TakenUnixMs,
		s.Mode,
		s.PointCount,
		s.GridSize,
		s.MaxDensity,
		s.MaxA1,
		s.MaxA2,
		s.MeanDensity,
		string(cfg),
	)
	if err != nil {
		return fmt.Errorf("failed to insert density snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit snapshots, newest first.
func (db *DB) RecentSnapshots(limit int) ([]DensitySnapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT snapshot_id, taken_unix_ms, mode, point_count, grid_size,
		       max_density, max_a1, max_a2, mean_density, config_json
		FROM density_snapshot
		ORDER BY taken_unix_ms DESC, rowid DESC
		LIMIT ?
	`
	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query density snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []DensitySnapshot{}
	for rows.Next() {
		var s DensitySnapshot
		var cfg string
		if err := rows.Scan(
			&s.SnapshotID,
			&s.TakenUnixMs,
			&s.Mode,
			&s.PointCount,
			&s.GridSize,
			&s.MaxDensity,
			&s.MaxA1,
			&s.MaxA2,
			&s.MeanDensity,
			&cfg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan density snapshot: %w", err)
		}
		s.Config = json.RawMessage(cfg)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating density snapshots: %w", err)
	}
	return snapshots, nil
}

// PruneSnapshots deletes all but the newest keep snapshots and returns the
// number removed.
func (db *DB) PruneSnapshots(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.DB.Exec(`
		DELETE FROM density_snapshot
		WHERE rowid NOT IN (
			SELECT rowid FROM density_snapshot
			ORDER BY taken_unix_ms DESC, rowid DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune density snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return n, nil
}
