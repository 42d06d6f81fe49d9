package coverage

import (
	"sort"
	"strings"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/model"
)

// statusWeight discounts stubbed requirements relative to missing ones when
// computing suggestion value.
func statusWeight(status model.CoverageStatus) float64 {
	if status == model.CoverageStubbed {
		return 0.5
	}
	return 1.0
}

// inferAction picks the kind of work most likely to close a gap from
// keywords in the requirement id.
func inferAction(requirementID string) model.FixAction {
	id := strings.ToLower(requirementID)
	switch {
	case strings.Contains(id, "budget") || strings.Contains(id, "cost") || strings.Contains(id, "financ"):
		return model.ActionAnswer
	case strings.Contains(id, "bio") || strings.Contains(id, "resume") || strings.Contains(id, "letter") || strings.Contains(id, "attachment"):
		return model.ActionUpload
	default:
		return model.ActionDraft
	}
}

// RankFixes turns missing/stubbed requirements into a value/effort-ranked
// action list. Output is sorted by ratio descending; equal ratios preserve
// the input requirement order. This list is the single source of "what to
// do next".
func RankFixes(reqs []model.CoverageRequirement, cfg config.CoverageConfig) []model.FixSuggestion {
	var suggestions []model.FixSuggestion

	for _, r := range reqs {
		if r.Status != model.CoverageMissing && r.Status != model.CoverageStubbed {
			continue
		}

		effort := cfg.EffortMissing
		if r.Status == model.CoverageStubbed {
			effort = cfg.EffortStubbed
		}

		value := r.Weight * (1 + r.EvidenceRank) * statusWeight(r.Status)
		ratio := 0.0
		if effort > 0 {
			ratio = value / effort
		}

		suggestions = append(suggestions, model.FixSuggestion{
			ID:            "fix:" + r.ID,
			RequirementID: r.ID,
			Action:        inferAction(r.ID),
			ValueScore:    value,
			EffortScore:   effort,
			Ratio:         ratio,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Ratio > suggestions[j].Ratio
	})
	return suggestions
}
