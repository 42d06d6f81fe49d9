package model

// ComplianceStatus is the outcome of a format simulation.
type ComplianceStatus string

const (
	ComplianceOK       ComplianceStatus = "ok"
	ComplianceOverflow ComplianceStatus = "overflow"
)

// ComplianceSettings are the formatting assumptions and limits a section is
// simulated against. Zero values mean "no limit" / "use default".
type ComplianceSettings struct {
	Spacing       string  `json:"spacing,omitempty"`    // single, 1.5, double
	FontSize      float64 `json:"font_size,omitempty"`  // points
	Margins       string  `json:"margins,omitempty"`    // normal, narrow, wide
	HardWordLimit int     `json:"hard_word_limit,omitempty"`
	SoftPageLimit float64 `json:"soft_page_limit,omitempty"`
}

// Merge overlays non-zero override fields onto s and returns the result.
func (s ComplianceSettings) Merge(o ComplianceSettings) ComplianceSettings {
	if o.Spacing != "" {
		s.Spacing = o.Spacing
	}
	if o.FontSize != 0 {
		s.FontSize = o.FontSize
	}
	if o.Margins != "" {
		s.Margins = o.Margins
	}
	if o.HardWordLimit != 0 {
		s.HardWordLimit = o.HardWordLimit
	}
	if o.SoftPageLimit != 0 {
		s.SoftPageLimit = o.SoftPageLimit
	}
	return s
}

// ComplianceResult is a pure function of (markdown, settings): estimated
// length and whether any hard or soft limit is exceeded.
type ComplianceResult struct {
	WordCount      int              `json:"word_count"`
	EstimatedPages float64          `json:"estimated_pages"`
	Status         ComplianceStatus `json:"status"`
}
