package model

import "time"

// FactKind groups mined facts by what they describe.
type FactKind string

const (
	FactKindOrg      FactKind = "org"
	FactKindProject  FactKind = "project"
	FactKindTeam     FactKind = "team"
	FactKindEvidence FactKind = "evidence"
)

// Fact is a reusable organization/project statement mined for section
// drafting. Facts are additive; dedup happens via the content hash, not by
// rewriting existing rows.
type Fact struct {
	ID         string          `json:"id"`
	Kind       FactKind        `json:"kind"`
	Slot       string          `json:"slot"`
	Value      string          `json:"value"`
	Confidence float64         `json:"confidence"`
	Evidence   *FactEvidence   `json:"evidence,omitempty"`
	Provenance *FactProvenance `json:"provenance,omitempty"`
	Hash       string          `json:"hash"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FactEvidence is the supporting citation returned by the content service.
type FactEvidence struct {
	Quote    string `json:"quote,omitempty"`
	File     string `json:"file,omitempty"`
	Href     string `json:"href,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

// Empty reports whether no citation of any kind is present.
func (e *FactEvidence) Empty() bool {
	return e == nil || (e.Quote == "" && e.File == "" && e.Href == "")
}

// FactProvenance ties a fact back to a byte range of an ingested upload.
type FactProvenance struct {
	UploadID string `json:"upload_id"`
	Start    int    `json:"start,omitempty"`
	End      int    `json:"end,omitempty"`
}
