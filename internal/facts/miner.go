package facts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/resilience"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/pkg/contentgen"
)

const minePrompt = `Extract reusable organization and project facts from the document below.
Return a JSON array; each element has:
  "kind":  one of "org", "project", "team", "evidence"
  "slot":  a short dotted identifier, e.g. "org.mission", "project.budget_total", "team.lead"
  "value": the fact itself, quoted verbatim where possible
  "quote": the exact source sentence the fact came from

Only include facts stated in the document. Document:

`

// minedFact is the shape the model returns per fact.
type minedFact struct {
	Kind  string `json:"kind"`
	Slot  string `json:"slot"`
	Value string `json:"value"`
	Quote string `json:"quote"`
}

// Miner builds the fact store: a metadata pass over bundle provenance plus a
// model-backed extraction pass over each current document. Facts are
// append-only; dedup happens by content hash.
type Miner struct {
	st  store.Store
	gen contentgen.Client
	cfg config.FactsConfig
}

// New creates a Miner. gen may be nil, in which case only the metadata pass
// runs.
func New(st store.Store, gen contentgen.Client, cfg config.FactsConfig) *Miner {
	return &Miner{st: st, gen: gen, cfg: cfg}
}

// Mine extracts facts from every current (non-superseded) bundle document,
// dedups against the stored set, appends new facts to the audit log, and
// persists the merged document.
func (m *Miner) Mine(ctx context.Context, projectID string) (*schema.Facts, error) {
	entries, err := m.st.ListBundle(ctx, projectID)
	if err != nil {
		return nil, err
	}

	existing, err := m.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byHash := make(map[string]bool, len(existing))
	for _, f := range existing {
		byHash[f.Hash] = true
	}

	var added []model.Fact
	now := time.Now().UTC()

	for _, entry := range entries {
		if entry.Superseded {
			continue
		}

		for _, f := range m.metadataFacts(entry, now) {
			if byHash[f.Hash] {
				continue
			}
			byHash[f.Hash] = true
			added = append(added, f)
		}

		if m.gen == nil {
			continue
		}
		mined, err := m.mineDocument(ctx, projectID, entry, now)
		if err != nil {
			zap.L().Warn("facts: document extraction failed",
				zap.String("project_id", projectID),
				zap.String("upload_id", entry.UploadID),
				zap.Error(err),
			)
			continue
		}
		for _, f := range mined {
			if byHash[f.Hash] {
				continue
			}
			byHash[f.Hash] = true
			added = append(added, f)
		}
	}

	for _, f := range added {
		if err := m.st.AppendFactEvent(ctx, projectID, f); err != nil {
			return nil, err
		}
	}

	doc := &schema.Facts{
		SchemaVersion: schema.Version,
		ProjectID:     projectID,
		Facts:         append(existing, added...),
		MinedAt:       now,
	}
	if err := m.persist(ctx, projectID, doc); err != nil {
		return nil, err
	}

	zap.L().Info("facts mined",
		zap.String("project_id", projectID),
		zap.Int("added", len(added)),
		zap.Int("total", len(doc.Facts)),
	)
	return doc, nil
}

// metadataFacts derives facts from provenance alone. This pass costs nothing
// and keeps mining useful with no generation backend configured.
func (m *Miner) metadataFacts(entry model.BundleEntry, now time.Time) []model.Fact {
	var out []model.Fact
	add := func(slot, value string) {
		if value == "" {
			return
		}
		f := model.Fact{
			ID:    uuid.New().String(),
			Kind:  model.FactKindProject,
			Slot:  slot,
			Value: value,
			Evidence: &model.FactEvidence{
				File: entry.Name,
			},
			Provenance: &model.FactProvenance{UploadID: entry.UploadID},
			Hash:       ContentHash(string(model.FactKindProject), slot, value),
			CreatedAt:  now,
		}
		f.Confidence = score(0.6, f, m.cfg)
		out = append(out, f)
	}

	add(fmt.Sprintf("source.%s.version", entry.TopicKey), entry.Version)
	if entry.ReleaseDate != nil {
		add(fmt.Sprintf("source.%s.release_date", entry.TopicKey), entry.ReleaseDate.Format("2006-01-02"))
	}
	return out
}

func (m *Miner) mineDocument(ctx context.Context, projectID string, entry model.BundleEntry, now time.Time) ([]model.Fact, error) {
	text, err := m.st.GetUpload(ctx, projectID, entry.UploadID)
	if err != nil {
		return nil, err
	}

	resp, err := m.gen.Generate(ctx, contentgen.Request{
		System: "You extract structured facts for grant proposal drafting. Respond with JSON only.",
		Prompt: minePrompt + text,
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(resp.Model, "facts")

	var mined []minedFact
	if err := contentgen.DecodeJSON(resp.Text, &mined); err != nil {
		return nil, err
	}

	out := make([]model.Fact, 0, len(mined))
	for _, mf := range mined {
		if mf.Slot == "" || mf.Value == "" {
			continue
		}
		kind := factKind(mf.Kind)
		f := model.Fact{
			ID:    uuid.New().String(),
			Kind:  kind,
			Slot:  mf.Slot,
			Value: mf.Value,
			Evidence: &model.FactEvidence{
				Quote: mf.Quote,
				File:  entry.Name,
			},
			Provenance: &model.FactProvenance{UploadID: entry.UploadID},
			// Hash the normalized kind so an unrecognized kind string dedups
			// against its normalized equivalent.
			Hash:      ContentHash(string(kind), mf.Slot, mf.Value),
			CreatedAt: now,
		}
		// A quote only counts as evidence when it actually appears in the
		// source document.
		if mf.Quote != "" {
			if idx := strings.Index(text, mf.Quote); idx >= 0 {
				f.Evidence.Verified = true
				f.Provenance.Start = idx
				f.Provenance.End = idx + len(mf.Quote)
			}
		}
		f.Confidence = score(0.6, f, m.cfg)
		out = append(out, f)
	}
	return out, nil
}

func factKind(s string) model.FactKind {
	switch model.FactKind(s) {
	case model.FactKindOrg, model.FactKindProject, model.FactKindTeam, model.FactKindEvidence:
		return model.FactKind(s)
	default:
		return model.FactKindProject
	}
}

func (m *Miner) load(ctx context.Context, projectID string) ([]model.Fact, error) {
	raw, _, err := m.st.GetDocField(ctx, projectID, model.DocFacts)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	doc := &schema.Facts{SchemaVersion: schema.Version}
	if err := schema.Unmarshal(raw, doc); err != nil {
		return nil, eris.Wrap(err, "facts: stored document invalid")
	}
	return doc.Facts, nil
}

func (m *Miner) persist(ctx context.Context, projectID string, doc *schema.Facts) error {
	raw, err := schema.Marshal(doc)
	if err != nil {
		return err
	}
	return resilience.Do(ctx, resilience.StaleWrites(), func(ctx context.Context) error {
		_, version, err := m.st.GetDocField(ctx, projectID, model.DocFacts)
		if err != nil {
			return err
		}
		_, err = m.st.PutDocField(ctx, projectID, model.DocFacts, raw, version)
		return err
	})
}
