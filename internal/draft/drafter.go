package draft

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/coverage"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/pkg/contentgen"
	"github.com/grantline/proposal-cli/pkg/kb"
)

// Drafter writes section content one slot at a time. Each slot gets its own
// generation call grounded in the facts mined for that slot; a failed call
// degrades to a placeholder paragraph instead of failing the section.
type Drafter struct {
	st  store.Store
	gen contentgen.Client
	kb  kb.Client
	cfg config.DraftConfig
}

// New creates a Drafter. kbClient may be nil when no knowledge base is
// configured.
func New(st store.Store, gen contentgen.Client, kbClient kb.Client, cfg config.DraftConfig) *Drafter {
	return &Drafter{st: st, gen: gen, kb: kbClient, cfg: cfg}
}

// DraftSection generates content for one section and stores it.
func (d *Drafter) DraftSection(ctx context.Context, projectID, key string) (*schema.SectionDraft, error) {
	sec, err := d.st.GetSection(ctx, projectID, key)
	if err != nil {
		return nil, err
	}
	facts, err := d.loadFacts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	handle := d.attach(ctx, projectID)
	return d.draft(ctx, projectID, *sec, facts, handle)
}

// DraftAll generates content for the given section keys, or every section
// when keys is empty. A section that fails entirely is logged and skipped.
func (d *Drafter) DraftAll(ctx context.Context, projectID string, keys []string) ([]schema.SectionDraft, error) {
	sections, err := d.st.ListSections(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		wanted := make(map[string]bool, len(keys))
		for _, k := range keys {
			wanted[k] = true
		}
		filtered := sections[:0]
		for _, sec := range sections {
			if wanted[sec.Key] {
				filtered = append(filtered, sec)
			}
		}
		sections = filtered
	}

	facts, err := d.loadFacts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	handle := d.attach(ctx, projectID)

	drafts := make([]schema.SectionDraft, 0, len(sections))
	for _, sec := range sections {
		out, err := d.draft(ctx, projectID, sec, facts, handle)
		if err != nil {
			zap.L().Warn("draft: section skipped",
				zap.String("project_id", projectID),
				zap.String("section", sec.Key),
				zap.Error(err),
			)
			continue
		}
		drafts = append(drafts, *out)
	}
	return drafts, nil
}

func (d *Drafter) draft(ctx context.Context, projectID string, sec model.Section, facts []model.Fact, handle string) (*schema.SectionDraft, error) {
	specs := SlotsFor(sec.Key, d.cfg.MaxSlots)

	out := &schema.SectionDraft{
		SchemaVersion: schema.Version,
		SectionDraft:  model.SectionDraft{SectionKey: sec.Key},
	}

	var body strings.Builder
	body.WriteString("## " + sec.Title + "\n")

	for _, spec := range specs {
		if spec.NA {
			continue
		}
		grounding := factsForSlot(facts, spec.Name)
		fill := d.fillSlot(ctx, sec, spec, grounding, handle)

		out.Slots = append(out.Slots, fill)
		out.Paragraphs = append(out.Paragraphs, model.ParagraphMeta{
			RequirementPath: sec.Key + "/" + spec.Name,
			Assumption:      fill.Assumption,
		})
		if fill.Assumption {
			out.Fallback = true
		}

		body.WriteString("\n" + fill.Text + "\n")
	}

	out.Markdown = body.String()
	if err := out.Validate(); err != nil {
		return nil, err
	}

	if err := d.st.UpdateSectionContent(ctx, projectID, sec.Key, out.Markdown, sec.Format); err != nil {
		return nil, err
	}

	zap.L().Info("section drafted",
		zap.String("project_id", projectID),
		zap.String("section", sec.Key),
		zap.Int("slots", len(out.Slots)),
		zap.Bool("fallback", out.Fallback),
	)
	return out, nil
}

// fillSlot generates one slot's paragraph. Generation failure or a missing
// backend yields a placeholder marked as an assumption so coverage and the
// export both surface it.
func (d *Drafter) fillSlot(ctx context.Context, sec model.Section, spec coverage.SlotSpec, grounding []model.Fact, handle string) model.SlotFill {
	fill := model.SlotFill{Slot: spec.Name}

	if d.gen == nil {
		fill.Text = placeholder(spec.Name)
		fill.Assumption = true
		return fill
	}

	var prompt strings.Builder
	prompt.WriteString("Write one polished paragraph for the \"" + sec.Title + "\" section of a grant proposal.\n")
	prompt.WriteString("This paragraph covers: " + spec.Name + "\n")
	if sec.Prompt != "" {
		prompt.WriteString("\nSolicitation instructions:\n" + sec.Prompt + "\n")
	}
	if len(grounding) > 0 {
		prompt.WriteString("\nGround the paragraph in these facts; do not invent figures:\n")
		for _, f := range grounding {
			prompt.WriteString("- " + f.Slot + ": " + f.Value + "\n")
			fill.Citations = append(fill.Citations, f.ID)
		}
	} else {
		prompt.WriteString("\nNo mined facts cover this topic. Write a clearly generic paragraph and avoid specific figures.\n")
	}

	resp, err := d.gen.Generate(ctx, contentgen.Request{
		System:   "You draft grant proposal sections. Respond with the paragraph only, no preamble.",
		Prompt:   prompt.String(),
		KBHandle: handle,
	})
	if err != nil {
		zap.L().Warn("draft: slot generation failed",
			zap.String("section", sec.Key),
			zap.String("slot", spec.Name),
			zap.Error(err),
		)
		fill.Text = placeholder(spec.Name)
		fill.Assumption = true
		return fill
	}
	resp.Usage.LogCost(resp.Model, "draft")

	fill.Text = strings.TrimSpace(resp.Text)
	if fill.Text == "" {
		fill.Text = placeholder(spec.Name)
		fill.Assumption = true
	} else if len(grounding) == 0 {
		fill.Assumption = true
	}
	return fill
}

// factsForSlot returns facts matching the slot name exactly or by dotted
// prefix, e.g. "project.budget_total" matches slot "project.budget_total"
// and "project.budget_total.year1".
func factsForSlot(facts []model.Fact, slot string) []model.Fact {
	var out []model.Fact
	for _, f := range facts {
		if f.Slot == slot || strings.HasPrefix(f.Slot, slot+".") {
			out = append(out, f)
		}
	}
	return out
}

func placeholder(slot string) string {
	return "_To be provided: " + slot + "._"
}

func (d *Drafter) loadFacts(ctx context.Context, projectID string) ([]model.Fact, error) {
	raw, _, err := d.st.GetDocField(ctx, projectID, model.DocFacts)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	doc := &schema.Facts{SchemaVersion: schema.Version}
	if err := schema.Unmarshal(raw, doc); err != nil {
		return nil, eris.Wrap(err, "draft: stored facts invalid")
	}
	return doc.Facts, nil
}

// attach requests a retrieval handle for the project's indexed documents.
// Failure is logged and drafting proceeds without retrieval.
func (d *Drafter) attach(ctx context.Context, projectID string) string {
	if d.kb == nil {
		return ""
	}
	entries, err := d.st.ListBundle(ctx, projectID)
	if err != nil {
		return ""
	}
	var fileIDs []string
	for _, e := range entries {
		if e.VectorFileID != "" && !e.Superseded {
			fileIDs = append(fileIDs, e.VectorFileID)
		}
	}
	handle, err := d.kb.Attach(ctx, projectID, fileIDs)
	if err != nil {
		zap.L().Warn("draft: knowledge base attach failed",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return ""
	}
	return handle
}
