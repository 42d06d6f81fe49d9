package model

import "time"

// Provenance points a canonical record back at the source document it was
// extracted from.
type Provenance struct {
	UploadID    string     `json:"upload_id,omitempty"`
	Version     string     `json:"version,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// Section is a canonical requirement: one normalized proposal section with
// the solicitation's instructions for it. The key is stable per project and
// joins draft content, coverage status, and fix suggestions.
type Section struct {
	ID         string       `json:"id"`
	Key        string       `json:"key"`
	Title      string       `json:"title"`
	Prompt     string       `json:"prompt"`
	Required   bool         `json:"required"`
	Order      int          `json:"order"`
	WordLimit  int          `json:"word_limit,omitempty"`
	PageLimit  float64      `json:"page_limit,omitempty"`
	Provenance Provenance   `json:"provenance"`
	ContentMd  string       `json:"content_md,omitempty"`
	Format     *FormatState `json:"format,omitempty"`
}

// FormatState is the settings+result pair from the last compliance
// simulation run against this section's content.
type FormatState struct {
	Settings ComplianceSettings `json:"settings"`
	Result   ComplianceResult   `json:"result"`
}

// EligibilityItem is one extracted eligibility condition. Once an operator
// override is set it wins until explicitly cleared; the normalizer must not
// re-create an overridden item.
type EligibilityItem struct {
	ID         string               `json:"id"`
	Text       string               `json:"text"`
	Fatal      bool                 `json:"fatal"`
	Confidence float64              `json:"confidence"`
	Override   *EligibilityOverride `json:"override,omitempty"`
}

// EligibilityOverride records an explicit operator decision on an item.
type EligibilityOverride struct {
	Fatal bool      `json:"fatal"`
	Note  string    `json:"note,omitempty"`
	At    time.Time `json:"at"`
}

// EffectiveFatal returns the fatal flag with any override applied.
func (e EligibilityItem) EffectiveFatal() bool {
	if e.Override != nil {
		return e.Override.Fatal
	}
	return e.Fatal
}

// SubmissionLimits holds document-wide format constraints extracted from the
// solicitation.
type SubmissionLimits struct {
	PageLimit float64 `json:"page_limit,omitempty"`
	WordLimit int     `json:"word_limit,omitempty"`
	FontSize  float64 `json:"font_size,omitempty"`
	Spacing   string  `json:"spacing,omitempty"`
}
