package model

import "time"

// Project is the root aggregate: one grant application being assembled.
// All pipeline state (bundle, sections, canonical documents, runs) hangs
// off a project ID.
type Project struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	DocVersion int64             `json:"doc_version"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// DocField names one of the whole-value JSON fields stored on the project
// document. Fields are always overwritten as a unit, never patched in place.
type DocField string

const (
	DocRFPNorm     DocField = "rfp_norm"
	DocFacts       DocField = "facts"
	DocCoverage    DocField = "coverage"
	DocConflictLog DocField = "conflict_log"
	DocEligibility DocField = "eligibility"
)
