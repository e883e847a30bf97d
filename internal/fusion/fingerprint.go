package fusion

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Fingerprint hashes the convergent fields of a snapshot into a lowercase
// hex digest. The byte stream is canonical: voxel indices in ascending
// numeric order, each index followed by its clamped log-odds value, then a
// second section with index and semantic label. Two logically-equal
// snapshots fingerprint identically no matter how their maps were populated.
//
// The skeleton layer is deliberately absent: it is not covered by the
// order-independence guarantee. SHA-256 is used as a collision-resistant
// digest for convergence assertions, not as a security primitive.
func Fingerprint(snap *Snapshot) string {
	h := sha256.New()
	var buf [8]byte

	h.Write([]byte("L2\x00"))
	for i, v := range snap.Lq {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(i))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(v))
		h.Write(buf[:8])
	}

	h.Write([]byte("L3\x00"))
	for i, label := range snap.Labels {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(i))
		binary.LittleEndian.PutUint16(buf[4:6], label)
		h.Write(buf[:6])
	}

	return hex.EncodeToString(h.Sum(nil))
}
