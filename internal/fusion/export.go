package fusion

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/mapfuse/internal/security"
)

// Archive export: one gob+gzip file per submap holding the clamped log-odds,
// occupancy bits, semantic labels and the header parameters that produced
// them. The same blob format the snapshot store persists.

// archiveRecord is the serialized form. Gob field names are part of the
// on-disk format; do not rename without a format-version bump.
type archiveRecord struct {
	FormatVersion string
	SubmapID      string
	NVox          int
	LmaxQ         int32
	QScale        int
	NClasses      int

	Lq     []int32
	Occ    []uint8
	Labels []uint16

	Skeleton       []byte
	PacketsApplied int
	Fingerprint    string
}

// EncodeArchive serializes a snapshot into the compressed archive blob.
func EncodeArchive(snap *Snapshot) ([]byte, error) {
	rec := archiveRecord{
		FormatVersion:  snap.FormatVersion,
		SubmapID:       snap.SubmapID,
		NVox:           snap.NVox,
		LmaxQ:          snap.LmaxQ,
		QScale:         snap.QScale,
		NClasses:       snap.NClasses,
		Lq:             snap.Lq,
		Occ:            snap.Occ,
		Labels:         snap.Labels,
		Skeleton:       snap.Skeleton,
		PacketsApplied: snap.PacketsApplied,
		Fingerprint:    snap.Fingerprint,
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(rec); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeArchive deserializes an archive blob back into a snapshot.
func DecodeArchive(blob []byte) (*Snapshot, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty archive blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var rec archiveRecord
	if err := gob.NewDecoder(gz).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	return &Snapshot{
		FormatVersion:  rec.FormatVersion,
		SubmapID:       rec.SubmapID,
		NVox:           rec.NVox,
		LmaxQ:          rec.LmaxQ,
		QScale:         rec.QScale,
		NClasses:       rec.NClasses,
		Lq:             rec.Lq,
		Occ:            rec.Occ,
		Labels:         rec.Labels,
		Skeleton:       rec.Skeleton,
		PacketsApplied: rec.PacketsApplied,
		Fingerprint:    rec.Fingerprint,
	}, nil
}

// WriteArchive writes a snapshot archive under dir, named by submap id.
// The directory is created if needed.
func WriteArchive(dir string, snap *Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	blob, err := EncodeArchive(snap)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("submap_%s.mfz", security.SanitizeFilename(snap.SubmapID)))
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return "", fmt.Errorf("archive path rejected: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	return path, nil
}

// ReadArchive loads a snapshot archive from disk.
func ReadArchive(path string) (*Snapshot, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return DecodeArchive(blob)
}
