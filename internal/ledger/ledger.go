// Package ledger maintains the conflict ledger: the audit log of
// contradictory information detected across document versions or extraction
// passes. Conflicts are never errors; they are recorded and surfaced for an
// operator to resolve.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/resilience"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

// Sink receives each recorded conflict synchronously, in call order. Passing
// sinks in explicitly keeps ordering deterministic; there is no global
// listener registry.
type Sink func(entry model.ConflictEntry)

// Ledger reads and rewrites the project's conflict_log document field as a
// whole value, guarded by the store's optimistic doc version.
type Ledger struct {
	st    store.Store
	sinks []Sink
}

// New creates a Ledger writing through st, notifying sinks on every record.
func New(st store.Store, sinks ...Sink) *Ledger {
	return &Ledger{st: st, sinks: sinks}
}

// Record upserts a conflict entry by key. A new key opens a fresh entry; an
// existing key has its previous/next snapshots replaced and is reopened
// (status reset to open, resolution cleared) if it had been resolved. At
// most one entry ever exists per key.
func (l *Ledger) Record(ctx context.Context, projectID string, kind model.ConflictKind, key string, previous, next model.ConflictSide) (*model.ConflictEntry, error) {
	var recorded model.ConflictEntry

	err := l.mutate(ctx, projectID, func(log *schema.ConflictLog) {
		now := time.Now().UTC()
		for i := range log.Entries {
			if log.Entries[i].Key != key {
				continue
			}
			e := &log.Entries[i]
			e.Kind = kind
			e.Previous = previous
			e.Next = next
			e.Status = model.ConflictOpen
			e.Resolution = ""
			e.UpdatedAt = now
			recorded = *e
			return
		}
		entry := model.ConflictEntry{
			Key:       key,
			Kind:      kind,
			Previous:  previous,
			Next:      next,
			Status:    model.ConflictOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		log.Entries = append(log.Entries, entry)
		recorded = entry
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("conflict recorded",
		zap.String("project_id", projectID),
		zap.String("key", key),
		zap.String("kind", string(kind)),
	)
	for _, sink := range l.sinks {
		sink(recorded)
	}
	return &recorded, nil
}

// Resolve marks an open entry resolved with the operator's note.
func (l *Ledger) Resolve(ctx context.Context, projectID, key, resolution string) error {
	found := false
	err := l.mutate(ctx, projectID, func(log *schema.ConflictLog) {
		for i := range log.Entries {
			if log.Entries[i].Key == key {
				log.Entries[i].Status = model.ConflictResolved
				log.Entries[i].Resolution = resolution
				log.Entries[i].UpdatedAt = time.Now().UTC()
				found = true
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return eris.Wrapf(store.ErrNotFound, "conflict %s", key)
	}
	return nil
}

// List returns all ledger entries for the project.
func (l *Ledger) List(ctx context.Context, projectID string) ([]model.ConflictEntry, error) {
	log, _, err := l.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return log.Entries, nil
}

// OpenCount returns the number of unresolved entries.
func (l *Ledger) OpenCount(ctx context.Context, projectID string) (int, error) {
	entries, err := l.List(ctx, projectID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Status == model.ConflictOpen {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) load(ctx context.Context, projectID string) (*schema.ConflictLog, int64, error) {
	raw, version, err := l.st.GetDocField(ctx, projectID, model.DocConflictLog)
	if err != nil {
		return nil, 0, err
	}
	log := &schema.ConflictLog{SchemaVersion: schema.Version}
	if len(raw) > 0 {
		if err := schema.Unmarshal(raw, log); err != nil {
			return nil, 0, eris.Wrap(err, "ledger: stored conflict log invalid")
		}
	}
	return log, version, nil
}

func (l *Ledger) mutate(ctx context.Context, projectID string, fn func(*schema.ConflictLog)) error {
	return resilience.Do(ctx, resilience.StaleWrites(), func(ctx context.Context) error {
		log, version, err := l.load(ctx, projectID)
		if err != nil {
			return err
		}
		fn(log)
		raw, err := schema.Marshal(log)
		if err != nil {
			return err
		}
		_, err = l.st.PutDocField(ctx, projectID, model.DocConflictLog, raw, version)
		return err
	})
}
