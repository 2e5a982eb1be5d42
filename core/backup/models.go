package backup

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core/conversion"
	"github.com/ud-systems/UD-Leads-sub001/core/lead"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
	"github.com/ud-systems/UD-Leads-sub001/core/territory"
	"github.com/ud-systems/UD-Leads-sub001/core/visit"
)

// SnapshotVersion is the version of the snapshots written by Encode.
const SnapshotVersion = 1

// Kinds
const (
	KindManual    = "manual"
	KindScheduled = "scheduled"
)

// Snapshot is the tenant data saved by a backup. Users are not part of it.
// A partial snapshot lacks the visits.
type Snapshot struct {
	Version     int                   `json:"version"`
	TenantID    string                `json:"tenant_id"`
	CreatedAt   time.Time             `json:"created_at"`
	Partial     bool                  `json:"partial"`
	Territories []territory.Territory `json:"territories"`
	Leads       []lead.Lead           `json:"leads"`
	Visits      []visit.Visit         `json:"visits"`
	Rules       []conversion.Rule     `json:"rules"`
	Settings    []setting.Setting     `json:"settings"`
}

type Counts struct {
	Territories int `json:"territories"`
	Leads       int `json:"leads"`
	Visits      int `json:"visits"`
	Rules       int `json:"rules"`
	Settings    int `json:"settings"`
}

func (s Snapshot) Counts() Counts {
	return Counts{
		Territories: len(s.Territories),
		Leads:       len(s.Leads),
		Visits:      len(s.Visits),
		Rules:       len(s.Rules),
		Settings:    len(s.Settings),
	}
}

// WithoutVisits returns the partial version of s.
func (s Snapshot) WithoutVisits() Snapshot {
	s.Partial = true
	s.Visits = []visit.Visit{}
	return s
}

// Backup describes a stored snapshot. Size is the size of the compressed payload.
type Backup struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Partial   bool      `json:"partial"`
	Size      int64     `json:"size"`
	RawSize   int64     `json:"raw_size"`
	Checksum  string    `json:"checksum"`
	Counts    Counts    `json:"counts"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Encode serializes s to gzipped JSON. It also returns the size of the JSON document.
func Encode(s Snapshot) (payload []byte, rawSize int64, err error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, 0, errors.Wrap(err, "encoding snapshot")
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, 0, errors.Wrap(err, "compressing snapshot")
	}
	if err := zw.Close(); err != nil {
		return nil, 0, errors.Wrap(err, "compressing snapshot")
	}
	return buf.Bytes(), int64(len(raw)), nil
}

// Decode reads a payload written by Encode.
func Decode(payload []byte) (Snapshot, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "decompressing snapshot")
	}
	defer zr.Close()

	var s Snapshot
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decoding snapshot")
	}
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return Snapshot{}, errors.Wrap(err, "decompressing snapshot")
	}
	return s, nil
}

func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
