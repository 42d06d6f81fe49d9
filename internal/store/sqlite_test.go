package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/proposal-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.CreateProject(ctx, "Riverbend", map[string]string{"funder": "DOE"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := st.GetProject(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riverbend", got.Name)
	assert.Equal(t, map[string]string{"funder": "DOE"}, got.Metadata)
	assert.Zero(t, got.DocVersion)

	_, err = st.GetProject(ctx, "no-such-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocField_VersionedWrites(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "versions", nil)
	require.NoError(t, err)

	// Empty column reads as nil with the current version.
	raw, version, err := st.GetDocField(ctx, project.ID, model.DocCoverage)
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.EqualValues(t, 0, version)

	next, err := st.PutDocField(ctx, project.ID, model.DocCoverage, json.RawMessage(`{"score":0.5}`), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, next)

	raw, version, err = st.GetDocField(ctx, project.ID, model.DocCoverage)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":0.5}`, string(raw))
	assert.EqualValues(t, 1, version)

	// A write against the old version loses.
	_, err = st.PutDocField(ctx, project.ID, model.DocCoverage, json.RawMessage(`{"score":0.8}`), 0)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrStaleVersion))

	// The version counter is shared across all document fields.
	next, err = st.PutDocField(ctx, project.ID, model.DocFacts, json.RawMessage(`{"facts":[]}`), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next)
}

func TestDocField_MissingProject(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.PutDocField(ctx, "no-such-id", model.DocFacts, json.RawMessage(`{}`), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, eris.Is(err, ErrStaleVersion))
}

func TestDocField_UnknownField(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "fields", nil)
	require.NoError(t, err)

	_, _, err = st.GetDocField(ctx, project.ID, model.DocField("nope"))
	require.Error(t, err)
	_, err = st.PutDocField(ctx, project.ID, model.DocField("nope"), nil, 0)
	require.Error(t, err)
}

func TestUploadsAndBundle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "bundle", nil)
	require.NoError(t, err)

	require.NoError(t, st.PutUpload(ctx, project.ID, "u1", "rfp_v1.md", "# RFP v1"))
	require.NoError(t, st.PutUpload(ctx, project.ID, "u1", "rfp_v1.md", "# RFP v1 fixed"))

	body, err := st.GetUpload(ctx, project.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "# RFP v1 fixed", body, "re-upload replaces the body")

	_, err = st.GetUpload(ctx, project.ID, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	entries := []model.BundleEntry{
		{UploadID: "u2", Name: "rfp_v2.md", TopicKey: "rfp:community", Version: "2"},
		{UploadID: "u1", Name: "rfp_v1.md", TopicKey: "rfp:community", Version: "1", Superseded: true},
	}
	require.NoError(t, st.ReplaceBundle(ctx, project.ID, entries))

	got, err := st.ListBundle(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u2", got[0].UploadID, "bundle keeps insertion order")
	assert.True(t, got[1].Superseded)

	require.NoError(t, st.ReplaceBundle(ctx, project.ID, entries[:1]))
	got, err = st.ListBundle(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1, "replace clears previous entries")
}

func TestSections(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "sections", nil)
	require.NoError(t, err)

	created, err := st.UpsertSection(ctx, project.ID, model.Section{
		Key: "narrative", Title: "Narrative", Order: 0, WordLimit: 500,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	require.NoError(t, st.UpdateSectionContent(ctx, project.ID, "narrative", "## Narrative\n\ndraft\n", nil))

	// Re-upsert moves metadata but keeps the id and drafted content.
	updated, err := st.UpsertSection(ctx, project.ID, model.Section{
		Key: "narrative", Title: "Project Narrative", Order: 1, WordLimit: 750,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 750, updated.WordLimit)

	got, err := st.GetSection(ctx, project.ID, "narrative")
	require.NoError(t, err)
	assert.Equal(t, "Project Narrative", got.Title)
	assert.Equal(t, "## Narrative\n\ndraft\n", got.ContentMd)

	err = st.UpdateSectionContent(ctx, project.ID, "missing", "x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSections_Ordered(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "ordered", nil)
	require.NoError(t, err)

	for i, key := range []string{"appendix", "narrative", "budget"} {
		_, err := st.UpsertSection(ctx, project.ID, model.Section{Key: key, Title: key, Order: 2 - i})
		require.NoError(t, err)
	}

	sections, err := st.ListSections(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "budget", sections[0].Key)
	assert.Equal(t, "narrative", sections[1].Key)
	assert.Equal(t, "appendix", sections[2].Key)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "runs", nil)
	require.NoError(t, err)

	active, err := st.ActiveRun(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "no active run on a fresh project")

	run, err := st.CreateRun(ctx, project.ID, "coverage", json.RawMessage(`{"force":true}`))
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	active, err = st.ActiveRun(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, run.ID, active.ID)

	seq1, err := st.AppendRunEvent(ctx, run.ID, model.EventToolResult, json.RawMessage(`{"tool":"coverage"}`))
	require.NoError(t, err)
	seq2, err := st.AppendRunEvent(ctx, run.ID, model.EventMetricCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, seq1)
	assert.Equal(t, 2, seq2)

	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusSucceeded, json.RawMessage(`{"score":1}`), ""))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, got.Status)
	require.Len(t, got.Events, 2)
	assert.Equal(t, model.EventToolResult, got.Events[0].Type)
	assert.Equal(t, model.EventMetricCompleted, got.Events[1].Type)

	active, err = st.ActiveRun(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "completed runs are not active")

	err = st.CompleteRun(ctx, "no-such-run", model.RunStatusFailed, nil, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_Filters(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	p1, err := st.CreateProject(ctx, "one", nil)
	require.NoError(t, err)
	p2, err := st.CreateProject(ctx, "two", nil)
	require.NoError(t, err)

	r1, err := st.CreateRun(ctx, p1.ID, "ingest", nil)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, model.RunStatusFailed, nil, "boom"))
	_, err = st.CreateRun(ctx, p1.ID, "normalize", nil)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, p2.ID, "ingest", nil)
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{ProjectID: p1.ID})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = st.ListRuns(ctx, RunFilter{ProjectID: p1.ID, Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r1.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestFactEvents_AppendOnly(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	project, err := st.CreateProject(ctx, "audit", nil)
	require.NoError(t, err)

	require.NoError(t, st.AppendFactEvent(ctx, project.ID, model.Fact{
		ID: "fact:1", Kind: model.FactKindProject, Slot: "project.budget_total", Value: "$50,000", Confidence: 0.85,
	}))
	require.NoError(t, st.AppendFactEvent(ctx, project.ID, model.Fact{
		ID: "fact:2", Kind: model.FactKindOrg, Slot: "org.mission", Value: "adult literacy", Confidence: 0.6,
	}))

	facts, err := st.ListFactEvents(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "project.budget_total", facts[0].Slot)
	assert.Equal(t, "org.mission", facts[1].Slot)
}
