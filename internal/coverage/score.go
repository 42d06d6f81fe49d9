// Package coverage derives per-requirement completion status, the overall
// coverage score, and the ranked fix-next list. The whole coverage document
// is recomputed on every pass; nothing is incrementally patched.
package coverage

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/resilience"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

// Scorer computes coverage snapshots and persists them to the project's
// coverage document field.
type Scorer struct {
	cfg config.CoverageConfig
	st  store.Store
}

// NewScorer creates a Scorer with the configured ranking knobs.
func NewScorer(cfg config.CoverageConfig, st store.Store) *Scorer {
	return &Scorer{cfg: cfg, st: st}
}

// Score recomputes the full coverage document from current section state,
// ranks fix suggestions, persists the snapshot, and returns it.
func (s *Scorer) Score(ctx context.Context, projectID string) (*schema.Coverage, error) {
	sections, err := s.st.ListSections(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reqs, score := ScoreSections(sections)
	suggestions := RankFixes(reqs, s.cfg)

	doc := &schema.Coverage{
		SchemaVersion: schema.Version,
		ProjectID:     projectID,
		Score:         score,
		Requirements:  reqs,
		Suggestions:   suggestions,
		ScoredAt:      time.Now().UTC(),
	}

	if err := s.persist(ctx, projectID, doc); err != nil {
		return nil, err
	}

	zap.L().Info("coverage scored",
		zap.String("project_id", projectID),
		zap.Float64("score", score),
		zap.Int("requirements", len(reqs)),
		zap.Int("suggestions", len(suggestions)),
	)
	return doc, nil
}

// ScoreWithSlots recomputes coverage against the discovered per-slot
// definition of done instead of raw content presence.
func (s *Scorer) ScoreWithSlots(ctx context.Context, projectID string, slots map[string][]SlotSpec, facts []model.Fact) (*schema.Coverage, error) {
	sections, err := s.st.ListSections(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reqs, score := ScoreSlots(sections, slots, facts, s.cfg.ShouldWeight)
	suggestions := RankFixes(reqs, s.cfg)

	doc := &schema.Coverage{
		SchemaVersion: schema.Version,
		ProjectID:     projectID,
		Score:         score,
		Requirements:  reqs,
		Suggestions:   suggestions,
		ScoredAt:      time.Now().UTC(),
	}
	if err := s.persist(ctx, projectID, doc); err != nil {
		return nil, err
	}

	zap.L().Info("coverage scored",
		zap.String("project_id", projectID),
		zap.String("mode", "slots"),
		zap.Float64("score", score),
		zap.Int("requirements", len(reqs)),
	)
	return doc, nil
}

func (s *Scorer) persist(ctx context.Context, projectID string, doc *schema.Coverage) error {
	raw, err := schema.Marshal(doc)
	if err != nil {
		return err
	}
	return resilience.Do(ctx, resilience.StaleWrites(), func(ctx context.Context) error {
		_, version, err := s.st.GetDocField(ctx, projectID, model.DocCoverage)
		if err != nil {
			return err
		}
		_, err = s.st.PutDocField(ctx, projectID, model.DocCoverage, raw, version)
		return err
	})
}

// ScoreSections derives one requirement per section from its current
// content and format state. Status is drafted iff the section has non-empty
// content; weight is 1/N; risk is high iff the last compliance simulation
// reported overflow. The score is drafted/N clamped to [0, 1].
func ScoreSections(sections []model.Section) ([]model.CoverageRequirement, float64) {
	n := len(sections)
	if n == 0 {
		return nil, 0
	}

	weight := 1.0 / float64(n)
	reqs := make([]model.CoverageRequirement, 0, n)
	drafted := 0

	for _, sec := range sections {
		status := model.CoverageMissing
		if strings.TrimSpace(sec.ContentMd) != "" {
			status = model.CoverageDrafted
			drafted++
		}

		risk := model.RiskLow
		if sec.Format != nil && sec.Format.Result.Status == model.ComplianceOverflow {
			risk = model.RiskHigh
		}

		reqs = append(reqs, model.CoverageRequirement{
			ID:     sec.Key,
			Status: status,
			Weight: weight,
			Risk:   risk,
		})
	}

	score := float64(drafted) / float64(n)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return reqs, score
}
