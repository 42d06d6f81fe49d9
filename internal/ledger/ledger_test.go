package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestLedger_RecordAndResolve(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	led := New(st)

	project, err := st.CreateProject(ctx, "ledger", nil)
	require.NoError(t, err)

	entry, err := led.Record(ctx, project.ID, model.ConflictVersion, "rfp:community:2:2025-02-20",
		model.ConflictSide{Name: "rfp_v1.md", Version: "1"},
		model.ConflictSide{Name: "rfp_v2.md", Version: "2"},
	)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictOpen, entry.Status)

	open, err := led.OpenCount(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	require.NoError(t, led.Resolve(ctx, project.ID, entry.Key, "v2 confirmed by program officer"))

	entries, err := led.List(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ConflictResolved, entries[0].Status)
	assert.Equal(t, "v2 confirmed by program officer", entries[0].Resolution)

	open, err = led.OpenCount(ctx, project.ID)
	require.NoError(t, err)
	assert.Zero(t, open)
}

func TestLedger_ReopenOnRecurrence(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	led := New(st)

	project, err := st.CreateProject(ctx, "reopen", nil)
	require.NoError(t, err)

	key := "section:budget"
	_, err = led.Record(ctx, project.ID, model.ConflictSection, key,
		model.ConflictSide{Excerpt: "one-year budget"},
		model.ConflictSide{Excerpt: "two-year budget"},
	)
	require.NoError(t, err)
	require.NoError(t, led.Resolve(ctx, project.ID, key, "use two-year"))

	// The same key recurring reopens the entry instead of duplicating it.
	reopened, err := led.Record(ctx, project.ID, model.ConflictSection, key,
		model.ConflictSide{Excerpt: "two-year budget"},
		model.ConflictSide{Excerpt: "three-year budget"},
	)
	require.NoError(t, err)
	assert.Equal(t, model.ConflictOpen, reopened.Status)
	assert.Empty(t, reopened.Resolution)
	assert.Equal(t, "three-year budget", reopened.Next.Excerpt)

	entries, err := led.List(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "at most one entry per key")
}

func TestLedger_SinksNotifiedInOrder(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var seen []string
	led := New(st, func(e model.ConflictEntry) {
		seen = append(seen, e.Key)
	})

	project, err := st.CreateProject(ctx, "sinks", nil)
	require.NoError(t, err)

	for _, key := range []string{"a", "b", "c"} {
		_, err := led.Record(ctx, project.ID, model.ConflictVersion, key,
			model.ConflictSide{}, model.ConflictSide{})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestLedger_ResolveUnknownKey(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	led := New(st)

	project, err := st.CreateProject(ctx, "unknown", nil)
	require.NoError(t, err)

	err = led.Resolve(ctx, project.ID, "no-such-key", "note")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
