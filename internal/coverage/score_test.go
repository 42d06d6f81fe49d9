package coverage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

func testCoverageConfig() config.CoverageConfig {
	return config.CoverageConfig{
		EffortMissing: 0.6,
		EffortStubbed: 0.4,
		ShouldWeight:  0.5,
	}
}

func newCoverageStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestScoreSections_HalfDrafted(t *testing.T) {
	sections := []model.Section{
		{Key: "narrative", ContentMd: "## Narrative\n\nDrafted text."},
		{Key: "budget"},
		{Key: "team", ContentMd: "## Team\n\nDrafted text."},
		{Key: "evaluation", ContentMd: "   \n"},
	}

	reqs, score := ScoreSections(sections)
	require.Len(t, reqs, 4)
	assert.Equal(t, 0.5, score)

	byID := map[string]model.CoverageRequirement{}
	for _, r := range reqs {
		byID[r.ID] = r
		assert.Equal(t, 0.25, r.Weight)
	}
	assert.Equal(t, model.CoverageDrafted, byID["narrative"].Status)
	assert.Equal(t, model.CoverageMissing, byID["budget"].Status)
	assert.Equal(t, model.CoverageMissing, byID["evaluation"].Status, "whitespace-only content is missing")

	suggestions := RankFixes(reqs, testCoverageConfig())
	assert.Len(t, suggestions, 2)
}

func TestScoreSections_Empty(t *testing.T) {
	reqs, score := ScoreSections(nil)
	assert.Nil(t, reqs)
	assert.Zero(t, score)
}

func TestScoreSections_OverflowRisk(t *testing.T) {
	sections := []model.Section{
		{
			Key:       "narrative",
			ContentMd: "text",
			Format: &model.FormatState{
				Result: model.ComplianceResult{Status: model.ComplianceOverflow},
			},
		},
	}
	reqs, _ := ScoreSections(sections)
	require.Len(t, reqs, 1)
	assert.Equal(t, model.RiskHigh, reqs[0].Risk)
}

func TestScorer_ScoreMonotonic(t *testing.T) {
	ctx := context.Background()
	st := newCoverageStore(t)
	scorer := NewScorer(testCoverageConfig(), st)

	project, err := st.CreateProject(ctx, "monotonic", nil)
	require.NoError(t, err)

	for i, key := range []string{"narrative", "budget"} {
		_, err := st.UpsertSection(ctx, project.ID, model.Section{Key: key, Title: key, Order: i})
		require.NoError(t, err)
	}

	doc, err := scorer.Score(ctx, project.ID)
	require.NoError(t, err)
	assert.Zero(t, doc.Score)

	require.NoError(t, st.UpdateSectionContent(ctx, project.ID, "narrative", "## Narrative\n\nDone.", nil))
	doc, err = scorer.Score(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, doc.Score)

	require.NoError(t, st.UpdateSectionContent(ctx, project.ID, "budget", "## Budget\n\nDone.", nil))
	doc, err = scorer.Score(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Score)
	assert.Empty(t, doc.Suggestions)

	// The snapshot round-trips through the store.
	raw, _, err := st.GetDocField(ctx, project.ID, model.DocCoverage)
	require.NoError(t, err)
	stored := &schema.Coverage{SchemaVersion: schema.Version}
	require.NoError(t, schema.Unmarshal(raw, stored))
	assert.Equal(t, 1.0, stored.Score)
	assert.Len(t, stored.Requirements, 2)
}
