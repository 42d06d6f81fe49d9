package model

import "time"

// ConflictStatus is the resolution state of a ledger entry.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// ConflictKind distinguishes where a contradiction was detected.
type ConflictKind string

const (
	// ConflictVersion: two bundle entries share a topic but differ in
	// version or release date.
	ConflictVersion ConflictKind = "version_conflict"
	// ConflictSection: two documents produced different prompt text for the
	// same section key during normalization.
	ConflictSection ConflictKind = "section_conflict"
)

// ConflictSide is one half of a detected disagreement.
type ConflictSide struct {
	UploadID    string     `json:"upload_id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Version     string     `json:"version,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
}

// ConflictEntry is one keyed row in the conflict ledger. At most one open
// entry exists per key; re-detecting a resolved conflict reopens it rather
// than duplicating.
type ConflictEntry struct {
	Key        string         `json:"key"`
	Kind       ConflictKind   `json:"kind"`
	Previous   ConflictSide   `json:"previous"`
	Next       ConflictSide   `json:"next"`
	Status     ConflictStatus `json:"status"`
	Resolution string         `json:"resolution,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
