package model

// CoverageStatus is the derived completion state of one requirement.
type CoverageStatus string

const (
	CoverageMissing   CoverageStatus = "missing"
	CoverageStubbed   CoverageStatus = "stubbed"
	CoverageEvidenced CoverageStatus = "evidenced"
	CoverageDrafted   CoverageStatus = "drafted"
	// Slot-based scoring reports these two instead of drafted/evidenced.
	CoverageComplete CoverageStatus = "complete"
	CoveragePartial  CoverageStatus = "partial"
)

// RiskLevel flags requirements whose current draft violates format limits.
type RiskLevel string

const (
	RiskLow  RiskLevel = "low"
	RiskHigh RiskLevel = "high"
)

// CoverageRequirement is the per-section coverage row. The whole set is
// recomputed on every scoring pass, never incrementally patched.
type CoverageRequirement struct {
	ID           string         `json:"id"`
	Status       CoverageStatus `json:"status"`
	Weight       float64        `json:"weight"`
	EvidenceRank float64        `json:"evidence_rank"`
	Risk         RiskLevel      `json:"risk"`
}

// FixAction is the kind of work a suggestion asks for.
type FixAction string

const (
	ActionUpload FixAction = "upload"
	ActionAnswer FixAction = "answer"
	ActionDraft  FixAction = "draft"
)

// FixSuggestion is one ranked next step toward closing a coverage gap.
// Suggestions are ephemeral: recomputed with every scoring pass, only the
// latest snapshot is kept.
type FixSuggestion struct {
	ID            string    `json:"id"`
	RequirementID string    `json:"requirement_id"`
	Action        FixAction `json:"action"`
	ValueScore    float64   `json:"value_score"`
	EffortScore   float64   `json:"effort_score"`
	Ratio         float64   `json:"ratio"`
}
