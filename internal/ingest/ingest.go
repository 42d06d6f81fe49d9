// Package ingest accepts source documents, assigns provenance, detects
// same-topic version conflicts, and maintains the ordered bundle metadata.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/pkg/kb"
)

// Input describes one source to ingest.
type Input struct {
	Kind     model.SourceKind `json:"kind"`
	Path     string           `json:"path,omitempty"`
	URL      string           `json:"url,omitempty"`
	UploadID string           `json:"upload_id,omitempty"`
	Name     string           `json:"name,omitempty"`
}

// Result reports what one ingestion pass did.
type Result struct {
	UploadIDs []string            `json:"upload_ids"`
	Entries   []model.BundleEntry `json:"entries"`
	Conflicts int                 `json:"conflicts_raised"`
	Skipped   []string            `json:"skipped,omitempty"`
}

// Ingester merges new sources into the project bundle.
type Ingester struct {
	st      store.Store
	ledger  *ledger.Ledger
	kb      kb.Client
	fetcher *Fetcher
}

// New creates an Ingester. kbClient may be nil when no knowledge base is
// configured; registration is skipped in that case.
func New(st store.Store, led *ledger.Ledger, kbClient kb.Client, fetcher *Fetcher) *Ingester {
	return &Ingester{st: st, ledger: led, kb: kbClient, fetcher: fetcher}
}

// Ingest loads each input, stores its text, detects version conflicts
// against same-topic entries, then rewrites the sorted bundle with
// superseded flags recomputed. A single failed input is logged and skipped;
// the rest of the bundle proceeds.
func (ing *Ingester) Ingest(ctx context.Context, projectID string, inputs []Input) (*Result, error) {
	entries, err := ing.st.ListBundle(ctx, projectID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	now := time.Now().UTC()

	for _, in := range inputs {
		name, text, err := ing.load(ctx, projectID, in)
		if err != nil {
			zap.L().Warn("ingest: source skipped",
				zap.String("project_id", projectID),
				zap.String("name", in.Name),
				zap.String("url", in.URL),
				zap.Error(err),
			)
			result.Skipped = append(result.Skipped, sourceLabel(in))
			continue
		}
		if in.Kind == model.SourceExisting {
			// Already in the bundle; nothing new to merge.
			result.UploadIDs = append(result.UploadIDs, in.UploadID)
			continue
		}

		uploadID := uuid.New().String()
		if err := ing.st.PutUpload(ctx, projectID, uploadID, name, text); err != nil {
			return nil, err
		}

		entry := model.BundleEntry{
			UploadID:    uploadID,
			Name:        name,
			Source:      in.Kind,
			Version:     DetectVersion(name),
			ReleaseDate: DetectReleaseDate(name),
			TopicKey:    TopicKey(name),
			CreatedAt:   now,
		}
		if in.URL != "" && entry.Version == "" {
			entry.Version = DetectVersion(in.URL)
		}
		if in.URL != "" && entry.ReleaseDate == nil {
			entry.ReleaseDate = DetectReleaseDate(in.URL)
		}

		if prev := latestForTopic(entries, entry.TopicKey); prev != nil && prev.ConflictKey() != entry.ConflictKey() {
			_, err := ing.ledger.Record(ctx, projectID, model.ConflictVersion, entry.ConflictKey(),
				conflictSide(*prev), conflictSide(entry))
			if err != nil {
				return nil, err
			}
			result.Conflicts++
		}

		ing.register(ctx, &entry, name, text)

		entries = append(entries, entry)
		result.UploadIDs = append(result.UploadIDs, uploadID)
	}

	SortEntries(entries)
	MarkSuperseded(entries)

	if err := ing.st.ReplaceBundle(ctx, projectID, entries); err != nil {
		return nil, err
	}

	result.Entries = entries
	zap.L().Info("bundle ingested",
		zap.String("project_id", projectID),
		zap.Int("added", len(result.UploadIDs)),
		zap.Int("conflicts", result.Conflicts),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (ing *Ingester) load(ctx context.Context, projectID string, in Input) (string, string, error) {
	switch in.Kind {
	case model.SourceFile:
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return "", "", err
		}
		name := in.Name
		if name == "" {
			name = filepath.Base(in.Path)
		}
		return name, string(data), nil
	case model.SourceURL:
		name, text, err := ing.fetcher.FetchURL(ctx, in.URL)
		if err != nil {
			return "", "", err
		}
		if in.Name != "" {
			name = in.Name
		}
		return name, text, nil
	default: // existing upload reference
		text, err := ing.st.GetUpload(ctx, projectID, in.UploadID)
		return in.Name, text, err
	}
}

// register attaches knowledge-base identifiers to the entry. Registration
// failure never fails ingestion.
func (ing *Ingester) register(ctx context.Context, entry *model.BundleEntry, name, text string) {
	if ing.kb == nil {
		return
	}
	reg, err := ing.kb.Register(ctx, name, []byte(text))
	if err != nil {
		zap.L().Warn("ingest: knowledge base registration failed",
			zap.String("upload_id", entry.UploadID),
			zap.Error(err),
		)
		return
	}
	entry.ConnectorID = reg.ConnectorID
	entry.VectorFileID = reg.VectorFileID
}

// SortEntries orders the bundle by release date (newest first), then
// version (numeric-aware, highest first), then name.
func SortEntries(entries []model.BundleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.ReleaseDate != nil && b.ReleaseDate != nil && !a.ReleaseDate.Equal(*b.ReleaseDate):
			return a.ReleaseDate.After(*b.ReleaseDate)
		case a.ReleaseDate != nil && b.ReleaseDate == nil:
			return true
		case a.ReleaseDate == nil && b.ReleaseDate != nil:
			return false
		}
		if c := CompareVersions(a.Version, b.Version); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
}

// MarkSuperseded flags every entry except the most recent per topic.
func MarkSuperseded(entries []model.BundleEntry) {
	seen := make(map[string]bool, len(entries))
	for i := range entries {
		topic := entries[i].TopicKey
		entries[i].Superseded = seen[topic]
		seen[topic] = true
	}
}

func latestForTopic(entries []model.BundleEntry, topic string) *model.BundleEntry {
	for i := range entries {
		if entries[i].TopicKey == topic && !entries[i].Superseded {
			return &entries[i]
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].TopicKey == topic {
			return &entries[i]
		}
	}
	return nil
}

func conflictSide(e model.BundleEntry) model.ConflictSide {
	return model.ConflictSide{
		UploadID:    e.UploadID,
		Name:        e.Name,
		Version:     e.Version,
		ReleaseDate: e.ReleaseDate,
	}
}

func sourceLabel(in Input) string {
	switch {
	case in.Path != "":
		return in.Path
	case in.URL != "":
		return in.URL
	default:
		return in.UploadID
	}
}
