package explain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const (
	SnapshotVersion = "1"
	FormatJSON      = "json"
)

// SnapshotMeta identifies a snapshot.
type SnapshotMeta struct {
	SnapshotID string    `json:"snapshotId"`
	CreatedAt  time.Time `json:"createdAt"`
	Source     string    `json:"source"`
	Version    string    `json:"version"`
}

// Snapshot is an immutable, checksummed capture of an explanation payload.
type Snapshot struct {
	Meta     SnapshotMeta    `json:"meta"`
	Payload  json.RawMessage `json:"payload"`
	Audience string          `json:"audience"`
	Format   string          `json:"format"`
	Checksum string          `json:"checksum"`
}

// NewSnapshot serializes payload, normalizes it to NFC and stamps a fresh id
// and the sha256 checksum of the normalized bytes.
func NewSnapshot(payload any, source, audience string, now time.Time) (Snapshot, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot payload: %w", err)
	}
	raw = norm.NFC.Bytes(raw)
	return Snapshot{
		Meta: SnapshotMeta{
			SnapshotID: uuid.NewString(),
			CreatedAt:  now.UTC(),
			Source:     source,
			Version:    SnapshotVersion,
		},
		Payload:  raw,
		Audience: audience,
		Format:   FormatJSON,
		Checksum: Checksum(raw),
	}, nil
}

// Checksum is the hex sha256 of the NFC form of b.
func Checksum(b []byte) string {
	sum := sha256.Sum256(norm.NFC.Bytes(b))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the payload still matches its checksum.
func (s Snapshot) Verify() bool {
	return Checksum(s.Payload) == s.Checksum
}
