// Package schema defines the canonical payload shapes exchanged between
// pipeline steps (RFP-NORM, FACTS, COVERAGE, SECTION-DRAFT). Every payload
// carries a schema_version and is validated both before writing to the store
// and after reading it back; a stored blob is never trusted without
// re-validation.
package schema

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grantline/proposal-cli/internal/model"
)

// Version is the current schema version stamped on all canonical payloads.
const Version = 1

// RFPNorm is the canonical requirement document produced by normalization.
type RFPNorm struct {
	SchemaVersion int                     `json:"schema_version"`
	ProjectID     string                  `json:"project_id"`
	Sections      []model.Section         `json:"sections"`
	Eligibility   []model.EligibilityItem `json:"eligibility"`
	Submission    model.SubmissionLimits  `json:"submission"`
	NormalizedAt  time.Time               `json:"normalized_at"`
}

// Validate checks structural invariants: version match, non-nil eligibility,
// and unique non-empty section keys.
func (d *RFPNorm) Validate() error {
	if d.SchemaVersion != Version {
		return eris.Errorf("schema: rfp_norm version %d, want %d", d.SchemaVersion, Version)
	}
	if d.Eligibility == nil {
		return eris.New("schema: rfp_norm missing eligibility array")
	}
	seen := make(map[string]bool, len(d.Sections))
	for _, s := range d.Sections {
		if s.Key == "" {
			return eris.New("schema: rfp_norm section with empty key")
		}
		if seen[s.Key] {
			return eris.Errorf("schema: rfp_norm duplicate section key %q", s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}

// Facts is the canonical mined-facts document.
type Facts struct {
	SchemaVersion int          `json:"schema_version"`
	ProjectID     string       `json:"project_id"`
	Facts         []model.Fact `json:"facts"`
	MinedAt       time.Time    `json:"mined_at"`
}

// Validate checks version and per-fact required fields.
func (d *Facts) Validate() error {
	if d.SchemaVersion != Version {
		return eris.Errorf("schema: facts version %d, want %d", d.SchemaVersion, Version)
	}
	for _, f := range d.Facts {
		if f.Slot == "" || f.Value == "" {
			return eris.New("schema: fact missing slot or value")
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			return eris.Errorf("schema: fact %s confidence %f out of range", f.Slot, f.Confidence)
		}
	}
	return nil
}

// Coverage is the canonical coverage snapshot, including the fix-next list.
type Coverage struct {
	SchemaVersion int                         `json:"schema_version"`
	ProjectID     string                      `json:"project_id"`
	Score         float64                     `json:"score"`
	Requirements  []model.CoverageRequirement `json:"requirements"`
	Suggestions   []model.FixSuggestion       `json:"suggestions"`
	ScoredAt      time.Time                   `json:"scored_at"`
}

// Validate checks version, score range, and requirement IDs.
func (d *Coverage) Validate() error {
	if d.SchemaVersion != Version {
		return eris.Errorf("schema: coverage version %d, want %d", d.SchemaVersion, Version)
	}
	if d.Score < 0 || d.Score > 1 {
		return eris.Errorf("schema: coverage score %f out of range", d.Score)
	}
	for _, r := range d.Requirements {
		if r.ID == "" {
			return eris.New("schema: coverage requirement with empty id")
		}
	}
	for _, s := range d.Suggestions {
		if s.RequirementID == "" {
			return eris.New("schema: suggestion with empty requirement id")
		}
	}
	return nil
}

// SectionDraft wraps the draft payload with its schema version.
type SectionDraft struct {
	SchemaVersion int `json:"schema_version"`
	model.SectionDraft
}

// Validate checks version and the section key.
func (d *SectionDraft) Validate() error {
	if d.SchemaVersion != Version {
		return eris.Errorf("schema: section_draft version %d, want %d", d.SchemaVersion, Version)
	}
	if d.SectionKey == "" {
		return eris.New("schema: section_draft missing section key")
	}
	return nil
}

// ConflictLog is the stored form of the conflict ledger.
type ConflictLog struct {
	SchemaVersion int                   `json:"schema_version"`
	Entries       []model.ConflictEntry `json:"entries"`
}

// Validate checks version and the one-entry-per-key invariant.
func (d *ConflictLog) Validate() error {
	if d.SchemaVersion != Version {
		return eris.Errorf("schema: conflict_log version %d, want %d", d.SchemaVersion, Version)
	}
	seen := make(map[string]bool, len(d.Entries))
	for _, e := range d.Entries {
		if e.Key == "" {
			return eris.New("schema: conflict entry with empty key")
		}
		if seen[e.Key] {
			return eris.Errorf("schema: duplicate conflict key %q", e.Key)
		}
		seen[e.Key] = true
	}
	return nil
}

// Eligibility is the stored form of the eligibility list.
type Eligibility struct {
	SchemaVersion int                     `json:"schema_version"`
	Items         []model.EligibilityItem `json:"items"`
}

// Validate checks version and item IDs.
func (d *Eligibility) Validate() error {
	if d.SchemaVersion != Version {
		return eris.Errorf("schema: eligibility version %d, want %d", d.SchemaVersion, Version)
	}
	for _, it := range d.Items {
		if it.ID == "" {
			return eris.New("schema: eligibility item with empty id")
		}
	}
	return nil
}

// Validator is implemented by every canonical payload.
type Validator interface {
	Validate() error
}

// Marshal validates v and returns its JSON encoding. Invalid payloads are
// never written to the store.
func Marshal(v Validator) (json.RawMessage, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "schema: marshal")
	}
	return raw, nil
}

// Unmarshal decodes raw into v and re-validates. A payload failing
// validation is discarded by callers, never partially applied.
func Unmarshal(raw json.RawMessage, v Validator) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return eris.Wrap(err, "schema: unmarshal")
	}
	return v.Validate()
}
