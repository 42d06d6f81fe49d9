package compliance

import (
	"context"

	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/store"
)

// TightenResult is the persisted outcome of a tighten pass.
type TightenResult struct {
	Markdown   string                 `json:"markdown"`
	Settings   model.ComplianceSettings `json:"settings"`
	Compliance model.ComplianceResult `json:"compliance"`
	Trimmed    bool                   `json:"trimmed"`
}

// Tightener applies a single-shot trim to a drafted section so it satisfies
// its hard word limit, then re-simulates. It never loops: page-limit
// overflow that survives the word-limit truncation is surfaced, not hidden.
type Tightener struct {
	sim *Simulator
	st  store.Store
}

// NewTightener creates a Tightener persisting through st.
func NewTightener(sim *Simulator, st store.Store) *Tightener {
	return &Tightener{sim: sim, st: st}
}

// Tighten merges overrides onto the section's current simulator settings,
// truncates the content to the hard word limit if exceeded, re-runs the
// simulator, and persists both the new markdown and the settings+result pair.
func (t *Tightener) Tighten(ctx context.Context, projectID, key string, overrides model.ComplianceSettings) (*TightenResult, error) {
	sec, err := t.st.GetSection(ctx, projectID, key)
	if err != nil {
		return nil, err
	}

	settings := t.sim.Defaults()
	if sec.Format != nil {
		settings = settings.Merge(sec.Format.Settings)
	}
	if sec.WordLimit > 0 && settings.HardWordLimit == 0 {
		settings.HardWordLimit = sec.WordLimit
	}
	if sec.PageLimit > 0 && settings.SoftPageLimit == 0 {
		settings.SoftPageLimit = sec.PageLimit
	}
	settings = settings.Merge(overrides)

	markdown := sec.ContentMd
	trimmed := false
	if settings.HardWordLimit > 0 && WordCount(markdown) > settings.HardWordLimit {
		markdown = TruncateWords(markdown, settings.HardWordLimit)
		trimmed = true
	}

	result := t.sim.Simulate(markdown, settings)

	state := &model.FormatState{Settings: settings, Result: result}
	if err := t.st.UpdateSectionContent(ctx, projectID, key, markdown, state); err != nil {
		return nil, err
	}

	zap.L().Info("section tightened",
		zap.String("project_id", projectID),
		zap.String("section", key),
		zap.Bool("trimmed", trimmed),
		zap.Int("word_count", result.WordCount),
		zap.String("status", string(result.Status)),
	)

	return &TightenResult{
		Markdown:   markdown,
		Settings:   settings,
		Compliance: result,
		Trimmed:    trimmed,
	}, nil
}
