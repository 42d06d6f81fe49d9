package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/proposal-cli/internal/model"
)

func TestRankFixes_OrderByRatio(t *testing.T) {
	reqs := []model.CoverageRequirement{
		{ID: "appendix", Status: model.CoverageStubbed, Weight: 0.25},
		{ID: "narrative", Status: model.CoverageMissing, Weight: 0.25},
		{ID: "team", Status: model.CoverageDrafted, Weight: 0.25},
		{ID: "evidence-heavy", Status: model.CoverageMissing, Weight: 0.25, EvidenceRank: 1.0},
	}

	got := RankFixes(reqs, testCoverageConfig())
	require.Len(t, got, 3, "drafted requirements produce no suggestion")

	// value/effort: evidence-heavy 0.5/0.6, narrative 0.25/0.6, appendix 0.125/0.4.
	assert.Equal(t, "evidence-heavy", got[0].RequirementID)
	assert.Equal(t, "narrative", got[1].RequirementID)
	assert.Equal(t, "appendix", got[2].RequirementID)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Ratio, got[i].Ratio)
	}
	assert.Equal(t, "fix:narrative", got[1].ID)
}

func TestRankFixes_StableForEqualRatios(t *testing.T) {
	reqs := []model.CoverageRequirement{
		{ID: "first", Status: model.CoverageMissing, Weight: 0.5},
		{ID: "second", Status: model.CoverageMissing, Weight: 0.5},
	}
	got := RankFixes(reqs, testCoverageConfig())
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].RequirementID)
	assert.Equal(t, "second", got[1].RequirementID)
}

func TestInferAction(t *testing.T) {
	assert.Equal(t, model.ActionAnswer, inferAction("budget-justification"))
	assert.Equal(t, model.ActionAnswer, inferAction("cost-share"))
	assert.Equal(t, model.ActionUpload, inferAction("letter-of-support"))
	assert.Equal(t, model.ActionUpload, inferAction("staff-resumes"))
	assert.Equal(t, model.ActionDraft, inferAction("project-narrative"))
}
