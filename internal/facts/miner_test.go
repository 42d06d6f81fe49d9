package facts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/pkg/contentgen"
)

const orgProfile = `Riverbend Literacy Council was founded in 2009.
Our annual operating budget is $450,000.
We serve three rural counties in the river valley.`

// fakeGen returns a canned response for every Generate call.
type fakeGen struct {
	text  string
	err   error
	calls int
}

func (f *fakeGen) Generate(_ context.Context, _ contentgen.Request) (*contentgen.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &contentgen.Response{Text: f.text, Model: "claude-sonnet-4-5-20250929"}, nil
}

func newMinerStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedBundle(t *testing.T, st store.Store, projectID string, superseded bool) model.BundleEntry {
	t.Helper()
	ctx := context.Background()

	uploadID := uuid.New().String()
	require.NoError(t, st.PutUpload(ctx, projectID, uploadID, "org_profile_v2.md", orgProfile))

	entry := model.BundleEntry{
		UploadID:   uploadID,
		Name:       "org_profile_v2.md",
		Source:     model.SourceFile,
		Version:    "2",
		TopicKey:   "doc:org-profile",
		Superseded: superseded,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.ReplaceBundle(ctx, projectID, []model.BundleEntry{entry}))
	return entry
}

func TestMine_MetadataOnly(t *testing.T) {
	ctx := context.Background()
	st := newMinerStore(t)
	m := New(st, nil, testFactsConfig())

	project, err := st.CreateProject(ctx, "metadata", nil)
	require.NoError(t, err)
	seedBundle(t, st, project.ID, false)

	doc, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, doc.Facts, 1)
	assert.Equal(t, "source.doc:org-profile.version", doc.Facts[0].Slot)
	assert.Equal(t, "2", doc.Facts[0].Value)
}

func TestMine_VerifiesQuotes(t *testing.T) {
	ctx := context.Background()
	st := newMinerStore(t)
	gen := &fakeGen{text: "```json\n" + `[
		{"kind":"org","slot":"org.budget_total","value":"$450,000","quote":"Our annual operating budget is $450,000."},
		{"kind":"org","slot":"org.reach","value":"three rural counties","quote":"We operate statewide."}
	]` + "\n```"}
	m := New(st, gen, testFactsConfig())

	project, err := st.CreateProject(ctx, "quotes", nil)
	require.NoError(t, err)
	seedBundle(t, st, project.ID, false)

	doc, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, doc.Facts, 3) // metadata fact + two mined

	bysSlot := map[string]model.Fact{}
	for _, f := range doc.Facts {
		bysSlot[f.Slot] = f
	}

	budget := bysSlot["org.budget_total"]
	require.NotNil(t, budget.Evidence)
	assert.True(t, budget.Evidence.Verified, "quote present in source must verify")
	require.NotNil(t, budget.Provenance)
	assert.Greater(t, budget.Provenance.End, budget.Provenance.Start)
	// 0.6 base + 0.15 evidence + 0.1 parseable dollar amount
	assert.InDelta(t, 0.85, budget.Confidence, 1e-9)

	reach := bysSlot["org.reach"]
	require.NotNil(t, reach.Evidence)
	assert.False(t, reach.Evidence.Verified, "quote absent from source must not verify")
	assert.InDelta(t, 0.6, reach.Confidence, 1e-9)
}

func TestMine_DedupByHash(t *testing.T) {
	ctx := context.Background()
	st := newMinerStore(t)
	gen := &fakeGen{text: `[{"kind":"org","slot":"org.founded","value":"2009","quote":""}]`}
	m := New(st, gen, testFactsConfig())

	project, err := st.CreateProject(ctx, "dedup", nil)
	require.NoError(t, err)
	seedBundle(t, st, project.ID, false)

	first, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)

	second, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, len(first.Facts), len(second.Facts), "re-mining the same bundle adds nothing")

	events, err := st.ListFactEvents(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, events, len(first.Facts), "audit log records each fact once")
}

func TestMine_UnknownKindDedupsAgainstNormalized(t *testing.T) {
	ctx := context.Background()
	st := newMinerStore(t)
	gen := &fakeGen{text: `[{"kind":"misc","slot":"project.duration","value":"24 months","quote":""}]`}
	m := New(st, gen, testFactsConfig())

	project, err := st.CreateProject(ctx, "kinds", nil)
	require.NoError(t, err)
	seedBundle(t, st, project.ID, false)

	first, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)

	bySlot := map[string]model.Fact{}
	for _, f := range first.Facts {
		bySlot[f.Slot] = f
	}
	duration := bySlot["project.duration"]
	assert.Equal(t, model.FactKindProject, duration.Kind, "unrecognized kind normalizes")
	assert.Equal(t, ContentHash(string(model.FactKindProject), "project.duration", "24 months"), duration.Hash)

	// The same fact returned with the normalized kind hashes identically.
	gen.text = `[{"kind":"project","slot":"project.duration","value":"24 months","quote":""}]`
	second, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, len(first.Facts), len(second.Facts))
}

func TestMine_SkipsSupersededEntries(t *testing.T) {
	ctx := context.Background()
	st := newMinerStore(t)
	gen := &fakeGen{text: `[]`}
	m := New(st, gen, testFactsConfig())

	project, err := st.CreateProject(ctx, "superseded", nil)
	require.NoError(t, err)
	seedBundle(t, st, project.ID, true)

	doc, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.Facts)
	assert.Zero(t, gen.calls)
}

func TestMine_GenerationFailureDegrades(t *testing.T) {
	ctx := context.Background()
	st := newMinerStore(t)
	gen := &fakeGen{err: context.DeadlineExceeded}
	m := New(st, gen, testFactsConfig())

	project, err := st.CreateProject(ctx, "degrade", nil)
	require.NoError(t, err)
	seedBundle(t, st, project.ID, false)

	// Extraction failure is logged and skipped; the metadata pass still lands.
	doc, err := m.Mine(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, doc.Facts, 1)
}
