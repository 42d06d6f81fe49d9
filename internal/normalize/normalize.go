package normalize

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/ingest"
	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/resilience"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

// excerptLen caps the prompt excerpt stored on a section conflict.
const excerptLen = 160

// Normalizer merges every bundle document into the canonical requirement
// document. Documents are applied oldest first so that when two versions
// define the same section differently, the newer one wins and the
// disagreement lands in the conflict ledger instead of being silently lost.
type Normalizer struct {
	st     store.Store
	ledger *ledger.Ledger
}

// New creates a Normalizer.
func New(st store.Store, led *ledger.Ledger) *Normalizer {
	return &Normalizer{st: st, ledger: led}
}

// Normalize rebuilds the requirement document from the current bundle.
// Running it twice against an unchanged bundle yields the same sections with
// the same IDs; operator eligibility overrides survive re-extraction.
func (n *Normalizer) Normalize(ctx context.Context, projectID string) (*schema.RFPNorm, error) {
	entries, err := n.st.ListBundle(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, eris.New("normalize: empty bundle")
	}

	// Oldest first: later documents overwrite earlier ones.
	ordered := make([]model.BundleEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		switch {
		case a.ReleaseDate != nil && b.ReleaseDate != nil && !a.ReleaseDate.Equal(*b.ReleaseDate):
			return a.ReleaseDate.Before(*b.ReleaseDate)
		case a.ReleaseDate == nil && b.ReleaseDate != nil:
			return true
		case a.ReleaseDate != nil && b.ReleaseDate == nil:
			return false
		}
		if c := ingest.CompareVersions(a.Version, b.Version); c != 0 {
			return c < 0
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	merged := map[string]*model.Section{}
	var order []string
	eligibility := []model.EligibilityItem{}
	var submission model.SubmissionLimits

	for _, entry := range ordered {
		text, err := n.st.GetUpload(ctx, projectID, entry.UploadID)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: load upload %s", entry.UploadID)
		}

		prov := model.Provenance{
			UploadID:    entry.UploadID,
			Version:     entry.Version,
			ReleaseDate: entry.ReleaseDate,
		}

		for _, cand := range ExtractSections([]byte(text)) {
			prev, exists := merged[cand.Key]
			if exists && prev.Prompt != cand.Prompt {
				if err := n.recordSectionConflict(ctx, projectID, cand.Key, *prev, cand, entry); err != nil {
					return nil, err
				}
			}
			sec := candidateToSection(cand, prov)
			if !exists {
				order = append(order, cand.Key)
			}
			merged[cand.Key] = &sec
		}

		eligibility = mergeEligibility(eligibility, ExtractEligibility(text))
		submission = mergeSubmission(submission, ExtractSubmission(text))
	}

	sections := make([]model.Section, 0, len(order))
	for i, key := range order {
		sec := merged[key]
		sec.Order = i
		stored, err := n.st.UpsertSection(ctx, projectID, *sec)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *stored)
	}

	eligibility, err = n.applyOverrides(ctx, projectID, eligibility)
	if err != nil {
		return nil, err
	}

	norm := &schema.RFPNorm{
		SchemaVersion: schema.Version,
		ProjectID:     projectID,
		Sections:      sections,
		Eligibility:   eligibility,
		Submission:    submission,
		NormalizedAt:  time.Now().UTC(),
	}
	if err := n.persist(ctx, projectID, norm, eligibility); err != nil {
		return nil, err
	}

	zap.L().Info("bundle normalized",
		zap.String("project_id", projectID),
		zap.Int("sections", len(sections)),
		zap.Int("eligibility_items", len(eligibility)),
	)
	return norm, nil
}

func candidateToSection(c Candidate, prov model.Provenance) model.Section {
	return model.Section{
		ID:         uuid.New().String(), // replaced by the stored ID on upsert
		Key:        c.Key,
		Title:      c.Title,
		Prompt:     c.Prompt,
		Required:   c.Required,
		WordLimit:  c.WordLimit,
		PageLimit:  c.PageLimit,
		Provenance: prov,
	}
}

func (n *Normalizer) recordSectionConflict(ctx context.Context, projectID, key string, prev model.Section, next Candidate, entry model.BundleEntry) error {
	_, err := n.ledger.Record(ctx, projectID, model.ConflictSection, "section:"+key,
		model.ConflictSide{
			UploadID:    prev.Provenance.UploadID,
			Version:     prev.Provenance.Version,
			ReleaseDate: prev.Provenance.ReleaseDate,
			Excerpt:     excerpt(prev.Prompt),
		},
		model.ConflictSide{
			UploadID:    entry.UploadID,
			Name:        entry.Name,
			Version:     entry.Version,
			ReleaseDate: entry.ReleaseDate,
			Excerpt:     excerpt(next.Prompt),
		},
	)
	return err
}

func excerpt(s string) string {
	if len(s) <= excerptLen {
		return s
	}
	return s[:excerptLen] + "…"
}

// mergeEligibility combines items by ID; later extractions of the same
// sentence replace earlier ones.
func mergeEligibility(existing, extracted []model.EligibilityItem) []model.EligibilityItem {
	byID := make(map[string]int, len(existing))
	for i, it := range existing {
		byID[it.ID] = i
	}
	for _, it := range extracted {
		if i, ok := byID[it.ID]; ok {
			existing[i] = it
			continue
		}
		byID[it.ID] = len(existing)
		existing = append(existing, it)
	}
	return existing
}

func mergeSubmission(base, next model.SubmissionLimits) model.SubmissionLimits {
	if next.PageLimit != 0 {
		base.PageLimit = next.PageLimit
	}
	if next.WordLimit != 0 {
		base.WordLimit = next.WordLimit
	}
	if next.FontSize != 0 {
		base.FontSize = next.FontSize
	}
	if next.Spacing != "" {
		base.Spacing = next.Spacing
	}
	return base
}

// applyOverrides carries operator decisions from the stored eligibility list
// onto the freshly extracted one. Overridden items are never re-created or
// reset: if extraction no longer finds an overridden item, the stored item is
// kept as-is.
func (n *Normalizer) applyOverrides(ctx context.Context, projectID string, items []model.EligibilityItem) ([]model.EligibilityItem, error) {
	raw, _, err := n.st.GetDocField(ctx, projectID, model.DocEligibility)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return items, nil
	}

	stored := &schema.Eligibility{SchemaVersion: schema.Version}
	if err := schema.Unmarshal(raw, stored); err != nil {
		return nil, eris.Wrap(err, "normalize: stored eligibility invalid")
	}

	extracted := make(map[string]int, len(items))
	for i, it := range items {
		extracted[it.ID] = i
	}
	for _, prev := range stored.Items {
		if prev.Override == nil {
			continue
		}
		if i, ok := extracted[prev.ID]; ok {
			items[i].Override = prev.Override
		} else {
			items = append(items, prev)
		}
	}
	return items, nil
}

func (n *Normalizer) persist(ctx context.Context, projectID string, norm *schema.RFPNorm, eligibility []model.EligibilityItem) error {
	normRaw, err := schema.Marshal(norm)
	if err != nil {
		return err
	}
	eligRaw, err := schema.Marshal(&schema.Eligibility{SchemaVersion: schema.Version, Items: eligibility})
	if err != nil {
		return err
	}

	return resilience.Do(ctx, resilience.StaleWrites(), func(ctx context.Context) error {
		_, version, err := n.st.GetDocField(ctx, projectID, model.DocRFPNorm)
		if err != nil {
			return err
		}
		version, err = n.st.PutDocField(ctx, projectID, model.DocRFPNorm, normRaw, version)
		if err != nil {
			return err
		}
		_, err = n.st.PutDocField(ctx, projectID, model.DocEligibility, eligRaw, version)
		return err
	})
}
