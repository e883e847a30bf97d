package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/mapfuse/internal/fusion"
	"github.com/banshee-data/mapfuse/internal/timeutil"
)

// SnapshotRecord is the stored metadata for one persisted snapshot. The
// snapshot payload itself lives in the archive blob.
type SnapshotRecord struct {
	SnapshotID       string `json:"snapshot_id"`
	SubmapID         string `json:"submap_id"`
	Fingerprint      string `json:"fingerprint"`
	FormatVersion    string `json:"format_version"`
	NVox             int    `json:"n_vox"`
	PacketsApplied   int    `json:"packets_applied"`
	SnapshotReason   string `json:"snapshot_reason"`
	CreatedUnixNanos int64  `json:"created_unix_nanos"`
}

// SnapshotStore provides persistence for finalized submap snapshots.
type SnapshotStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewSnapshotStore creates a SnapshotStore over an open database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db, clock: timeutil.RealClock{}}
}

// Insert persists a snapshot with the given reason ("manual", "export",
// "on_finalize") and returns the generated snapshot id.
func (s *SnapshotStore) Insert(snap *fusion.Snapshot, reason string) (string, error) {
	blob, err := fusion.EncodeArchive(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot archive: %w", err)
	}
	id := uuid.New().String()
	createdAt := s.clock.Now().UnixNano()

	err = retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO submap_snapshots (
				snapshot_id, submap_id, fingerprint, format_version,
				n_vox, lmax_q, q_scale, n_classes,
				packets_applied, snapshot_reason, archive_blob, created_unix_nanos
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, snap.SubmapID, snap.Fingerprint, snap.FormatVersion,
			snap.NVox, snap.LmaxQ, snap.QScale, snap.NClasses,
			snap.PacketsApplied, reason, blob, createdAt,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// GetLatest returns the most recently persisted snapshot for a submap, or
// (nil, nil) when none exists.
func (s *SnapshotStore) GetLatest(submapID string) (*fusion.Snapshot, error) {
	var blob []byte
	err := s.db.QueryRow(`
		SELECT archive_blob FROM submap_snapshots
		WHERE submap_id = ?
		ORDER BY created_unix_nanos DESC
		LIMIT 1`, submapID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	return fusion.DecodeArchive(blob)
}

// ListRecords returns snapshot metadata for all persisted snapshots of a
// submap, newest first. An empty submapID lists every submap.
func (s *SnapshotStore) ListRecords(submapID string) ([]*SnapshotRecord, error) {
	query := `
		SELECT snapshot_id, submap_id, fingerprint, format_version,
		       n_vox, packets_applied, snapshot_reason, created_unix_nanos
		FROM submap_snapshots`
	args := []interface{}{}
	if submapID != "" {
		query += ` WHERE submap_id = ?`
		args = append(args, submapID)
	}
	query += ` ORDER BY created_unix_nanos DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRecord
	for rows.Next() {
		rec := &SnapshotRecord{}
		if err := rows.Scan(
			&rec.SnapshotID, &rec.SubmapID, &rec.Fingerprint, &rec.FormatVersion,
			&rec.NVox, &rec.PacketsApplied, &rec.SnapshotReason, &rec.CreatedUnixNanos,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
