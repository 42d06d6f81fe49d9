package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSortEntries(t *testing.T) {
	entries := []model.BundleEntry{
		{Name: "b-undated", Version: "1"},
		{Name: "a-old", ReleaseDate: date(2025, 1, 10)},
		{Name: "c-new", ReleaseDate: date(2025, 3, 1)},
		{Name: "a-undated", Version: "2"},
	}
	SortEntries(entries)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	// Dated entries first, newest date first; undated by version descending.
	assert.Equal(t, []string{"c-new", "a-old", "a-undated", "b-undated"}, names)
}

func TestMarkSuperseded(t *testing.T) {
	entries := []model.BundleEntry{
		{Name: "rfp-v2", TopicKey: "rfp:community"},
		{Name: "rfp-v1", TopicKey: "rfp:community"},
		{Name: "budget", TopicKey: "doc:budget"},
	}
	MarkSuperseded(entries)

	assert.False(t, entries[0].Superseded)
	assert.True(t, entries[1].Superseded)
	assert.False(t, entries[2].Superseded)
}

func TestIngest_VersionConflict(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	led := ledger.New(st)
	ing := New(st, led, nil, nil)

	project, err := st.CreateProject(ctx, "conflict test", nil)
	require.NoError(t, err)

	dir := t.TempDir()
	v1 := writeDoc(t, dir, "community_rfp_v1_2025-01-15.md", "# Overview\n\nOriginal policy.\n")
	v2 := writeDoc(t, dir, "community_rfp_v2_2025-02-20.md", "# Overview\n\nRevised policy.\n")

	res, err := ing.Ingest(ctx, project.ID, []Input{{Kind: model.SourceFile, Path: v1}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Conflicts)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "1", res.Entries[0].Version)
	assert.False(t, res.Entries[0].Superseded)

	res, err = ing.Ingest(ctx, project.ID, []Input{{Kind: model.SourceFile, Path: v2}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	require.Len(t, res.Entries, 2)

	// Newer version sorts first; the older one is superseded.
	assert.Equal(t, "2", res.Entries[0].Version)
	assert.False(t, res.Entries[0].Superseded)
	assert.Equal(t, "1", res.Entries[1].Version)
	assert.True(t, res.Entries[1].Superseded)

	entries, err := led.List(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ConflictVersion, entries[0].Kind)
	assert.Equal(t, model.ConflictOpen, entries[0].Status)
	assert.Equal(t, "1", entries[0].Previous.Version)
	assert.Equal(t, "2", entries[0].Next.Version)

	// Re-ingesting the same version raises nothing new.
	res, err = ing.Ingest(ctx, project.ID, []Input{{Kind: model.SourceFile, Path: v2}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Conflicts)

	open, err := led.OpenCount(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestIngest_BundlePersisted(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ing := New(st, ledger.New(st), nil, nil)

	project, err := st.CreateProject(ctx, "persist test", nil)
	require.NoError(t, err)

	path := writeDoc(t, t.TempDir(), "guidelines.md", "# Guidelines\n\nBody text.\n")
	res, err := ing.Ingest(ctx, project.ID, []Input{{Kind: model.SourceFile, Path: path}})
	require.NoError(t, err)
	require.Len(t, res.UploadIDs, 1)

	stored, err := st.ListBundle(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "guidelines.md", stored[0].Name)
	assert.Equal(t, res.UploadIDs[0], stored[0].UploadID)

	text, err := st.GetUpload(ctx, project.ID, stored[0].UploadID)
	require.NoError(t, err)
	assert.Contains(t, text, "Body text.")
}

func TestIngest_FailedSourceSkipped(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	ing := New(st, ledger.New(st), nil, nil)

	project, err := st.CreateProject(ctx, "skip test", nil)
	require.NoError(t, err)

	good := writeDoc(t, t.TempDir(), "rfp.md", "# RFP\n\nContent.\n")
	res, err := ing.Ingest(ctx, project.ID, []Input{
		{Kind: model.SourceFile, Path: "/nonexistent/missing.md"},
		{Kind: model.SourceFile, Path: good},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/nonexistent/missing.md"}, res.Skipped)
	assert.Len(t, res.UploadIDs, 1)
}
