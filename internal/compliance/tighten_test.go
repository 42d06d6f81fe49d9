package compliance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/store"
)

func newTightenStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedSection(t *testing.T, st store.Store, projectID string, sec model.Section, content string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.UpsertSection(ctx, projectID, sec)
	require.NoError(t, err)
	require.NoError(t, st.UpdateSectionContent(ctx, projectID, sec.Key, content, nil))
}

func TestTighten_TrimsToWordLimit(t *testing.T) {
	ctx := context.Background()
	st := newTightenStore(t)
	tight := NewTightener(NewSimulator(testComplianceConfig()), st)

	project, err := st.CreateProject(ctx, "tighten", nil)
	require.NoError(t, err)
	seedSection(t, st, project.ID, model.Section{Key: "narrative", Title: "Narrative", WordLimit: 50}, words(80))

	res, err := tight.Tighten(ctx, project.ID, "narrative", model.ComplianceSettings{})
	require.NoError(t, err)

	assert.True(t, res.Trimmed)
	assert.Equal(t, 50, res.Compliance.WordCount)
	assert.Equal(t, model.ComplianceOK, res.Compliance.Status)
	assert.Equal(t, 50, res.Settings.HardWordLimit, "section word limit becomes the hard limit")

	// The trimmed content and the settings+result pair are persisted.
	sec, err := st.GetSection(ctx, project.ID, "narrative")
	require.NoError(t, err)
	assert.Equal(t, res.Markdown, sec.ContentMd)
	require.NotNil(t, sec.Format)
	assert.Equal(t, 50, sec.Format.Result.WordCount)
}

func TestTighten_UnderLimitUntouched(t *testing.T) {
	ctx := context.Background()
	st := newTightenStore(t)
	tight := NewTightener(NewSimulator(testComplianceConfig()), st)

	project, err := st.CreateProject(ctx, "under", nil)
	require.NoError(t, err)
	content := words(30)
	seedSection(t, st, project.ID, model.Section{Key: "team", Title: "Team", WordLimit: 50}, content)

	res, err := tight.Tighten(ctx, project.ID, "team", model.ComplianceSettings{})
	require.NoError(t, err)
	assert.False(t, res.Trimmed)
	assert.Equal(t, content, res.Markdown)
}

func TestTighten_PageOverflowSurfaces(t *testing.T) {
	ctx := context.Background()
	st := newTightenStore(t)
	tight := NewTightener(NewSimulator(testComplianceConfig()), st)

	project, err := st.CreateProject(ctx, "pages", nil)
	require.NoError(t, err)
	seedSection(t, st, project.ID, model.Section{Key: "narrative", Title: "Narrative", PageLimit: 1}, words(700))

	// No word limit to trim against: the page overflow is reported, not hidden.
	res, err := tight.Tighten(ctx, project.ID, "narrative", model.ComplianceSettings{})
	require.NoError(t, err)
	assert.False(t, res.Trimmed)
	assert.Equal(t, model.ComplianceOverflow, res.Compliance.Status)
}

func TestTighten_OverridesWin(t *testing.T) {
	ctx := context.Background()
	st := newTightenStore(t)
	tight := NewTightener(NewSimulator(testComplianceConfig()), st)

	project, err := st.CreateProject(ctx, "overrides", nil)
	require.NoError(t, err)
	seedSection(t, st, project.ID, model.Section{Key: "narrative", Title: "Narrative", WordLimit: 500}, words(100))

	res, err := tight.Tighten(ctx, project.ID, "narrative", model.ComplianceSettings{HardWordLimit: 40, Spacing: "double"})
	require.NoError(t, err)
	assert.True(t, res.Trimmed)
	assert.Equal(t, 40, res.Compliance.WordCount)
	assert.Equal(t, "double", res.Settings.Spacing)
}

func TestTighten_MissingSection(t *testing.T) {
	ctx := context.Background()
	st := newTightenStore(t)
	tight := NewTightener(NewSimulator(testComplianceConfig()), st)

	project, err := st.CreateProject(ctx, "missing", nil)
	require.NoError(t, err)

	_, err = tight.Tighten(ctx, project.ID, "nope", model.ComplianceSettings{})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
