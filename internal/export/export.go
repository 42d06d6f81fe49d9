// Package export assembles the deliverable: a summary-first proposal
// document (coverage and eligibility before content) in markdown or HTML,
// plus a coverage matrix worksheet.
package export

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/ledger"
	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/schema"
	"github.com/grantline/proposal-cli/internal/store"
)

// Exporter reads the project's canonical documents and assembles output.
type Exporter struct {
	st     store.Store
	ledger *ledger.Ledger
}

// New creates an Exporter.
func New(st store.Store, led *ledger.Ledger) *Exporter {
	return &Exporter{st: st, ledger: led}
}

// Markdown assembles the full proposal document. The summary block comes
// first so a reviewer sees readiness before content.
func (e *Exporter) Markdown(ctx context.Context, projectID string) (string, error) {
	project, err := e.st.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	sections, err := e.st.ListSections(ctx, projectID)
	if err != nil {
		return "", err
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Order < sections[j].Order
	})

	coverage, err := e.loadCoverage(ctx, projectID)
	if err != nil {
		return "", err
	}
	eligibility, err := e.loadEligibility(ctx, projectID)
	if err != nil {
		return "", err
	}
	openConflicts := 0
	if e.ledger != nil {
		openConflicts, err = e.ledger.OpenCount(ctx, projectID)
		if err != nil {
			return "", err
		}
	}

	var b strings.Builder
	b.WriteString("# " + project.Name + "\n\n")
	e.writeSummary(&b, coverage, eligibility, openConflicts)

	for _, sec := range sections {
		b.WriteString("\n")
		if strings.TrimSpace(sec.ContentMd) == "" {
			b.WriteString("## " + sec.Title + "\n\n_Not yet drafted._\n")
			continue
		}
		b.WriteString(sec.ContentMd)
		if !strings.HasSuffix(sec.ContentMd, "\n") {
			b.WriteString("\n")
		}
	}

	zap.L().Info("proposal exported",
		zap.String("project_id", projectID),
		zap.Int("sections", len(sections)),
	)
	return b.String(), nil
}

// HTML renders the assembled document through goldmark.
func (e *Exporter) HTML(ctx context.Context, projectID string) (string, error) {
	md, err := e.Markdown(ctx, projectID)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", eris.Wrap(err, "export: render html")
	}
	return buf.String(), nil
}

// CoverageMatrix writes the per-requirement coverage worksheet to path.
func (e *Exporter) CoverageMatrix(ctx context.Context, projectID, path string) error {
	coverage, err := e.loadCoverage(ctx, projectID)
	if err != nil {
		return err
	}
	if coverage == nil {
		return eris.New("export: no coverage snapshot; run coverage first")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Coverage")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{"Requirement", "Status", "Weight", "Risk"} {
		header.AddCell().SetString(col)
	}
	for _, r := range coverage.Requirements {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ID)
		row.AddCell().SetString(string(r.Status))
		row.AddCell().SetFloat(r.Weight)
		row.AddCell().SetString(string(r.Risk))
	}

	sheet2, err := f.AddSheet("Fix Next")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	header2 := sheet2.AddRow()
	for _, col := range []string{"Requirement", "Action", "Value", "Effort", "Ratio"} {
		header2.AddCell().SetString(col)
	}
	for _, s := range coverage.Suggestions {
		row := sheet2.AddRow()
		row.AddCell().SetString(s.RequirementID)
		row.AddCell().SetString(string(s.Action))
		row.AddCell().SetFloat(s.ValueScore)
		row.AddCell().SetFloat(s.EffortScore)
		row.AddCell().SetFloat(s.Ratio)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save matrix %s", path)
	}
	zap.L().Info("coverage matrix exported",
		zap.String("project_id", projectID),
		zap.String("path", path),
	)
	return nil
}

func (e *Exporter) writeSummary(b *strings.Builder, coverage *schema.Coverage, eligibility []model.EligibilityItem, openConflicts int) {
	b.WriteString("## Readiness Summary\n\n")

	if coverage != nil {
		fmt.Fprintf(b, "- Coverage score: %.0f%%\n", coverage.Score*100)
		missing := 0
		for _, r := range coverage.Requirements {
			if r.Status == model.CoverageMissing || r.Status == model.CoverageStubbed {
				missing++
			}
		}
		fmt.Fprintf(b, "- Requirements needing work: %d of %d\n", missing, len(coverage.Requirements))
	} else {
		b.WriteString("- Coverage: not yet scored\n")
	}

	fatal := 0
	for _, item := range eligibility {
		if item.EffectiveFatal() {
			fatal++
		}
	}
	if fatal > 0 {
		fmt.Fprintf(b, "- **Fatal eligibility conditions: %d — verify before submitting**\n", fatal)
	} else {
		b.WriteString("- No fatal eligibility conditions\n")
	}
	if openConflicts > 0 {
		fmt.Fprintf(b, "- **Open document conflicts: %d**\n", openConflicts)
	}

	if coverage != nil && len(coverage.Suggestions) > 0 {
		b.WriteString("\n### Fix Next\n\n")
		for i, s := range coverage.Suggestions {
			if i >= 5 {
				break
			}
			fmt.Fprintf(b, "%d. %s: %s (ratio %.2f)\n", i+1, s.Action, s.RequirementID, s.Ratio)
		}
	}

	if fatal > 0 {
		b.WriteString("\n### Eligibility\n\n")
		for _, item := range eligibility {
			if item.EffectiveFatal() {
				b.WriteString("- " + item.Text + "\n")
			}
		}
	}
}

func (e *Exporter) loadCoverage(ctx context.Context, projectID string) (*schema.Coverage, error) {
	raw, _, err := e.st.GetDocField(ctx, projectID, model.DocCoverage)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	doc := &schema.Coverage{SchemaVersion: schema.Version}
	if err := schema.Unmarshal(raw, doc); err != nil {
		return nil, eris.Wrap(err, "export: stored coverage invalid")
	}
	return doc, nil
}

func (e *Exporter) loadEligibility(ctx context.Context, projectID string) ([]model.EligibilityItem, error) {
	raw, _, err := e.st.GetDocField(ctx, projectID, model.DocEligibility)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	doc := &schema.Eligibility{SchemaVersion: schema.Version}
	if err := schema.Unmarshal(raw, doc); err != nil {
		return nil, eris.Wrap(err, "export: stored eligibility invalid")
	}
	return doc.Items, nil
}
