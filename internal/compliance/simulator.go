// Package compliance estimates the rendered length of section text against
// formatting assumptions and trims drafts to hard limits.
package compliance

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/model"
)

// Simulator estimates word/page counts. It is a pure function of
// (markdown, settings) plus the configured policy constants.
type Simulator struct {
	cfg config.ComplianceConfig
}

// NewSimulator creates a Simulator with the given policy constants.
func NewSimulator(cfg config.ComplianceConfig) *Simulator {
	return &Simulator{cfg: cfg}
}

// Defaults returns the configured default formatting assumptions with no
// limits set.
func (s *Simulator) Defaults() model.ComplianceSettings {
	return model.ComplianceSettings{
		Spacing:  s.cfg.DefaultSpacing,
		FontSize: s.cfg.DefaultFontSize,
		Margins:  s.cfg.DefaultMargins,
	}
}

// Simulate estimates the length of markdown under settings. Status is
// overflow iff the hard word limit or the soft page limit is exceeded.
func (s *Simulator) Simulate(markdown string, settings model.ComplianceSettings) model.ComplianceResult {
	wc := WordCount(markdown)

	wordsPerPage := float64(s.cfg.BaseWordsPerPage) *
		spacingMultiplier(settings.Spacing) *
		sizeMultiplier(settings.FontSize, s.cfg.DefaultFontSize) *
		marginMultiplier(settings.Margins)
	if floor := float64(s.cfg.FloorWordsPerPage); wordsPerPage < floor {
		wordsPerPage = floor
	}

	pages := float64(wc) / wordsPerPage

	status := model.ComplianceOK
	if settings.HardWordLimit > 0 && wc > settings.HardWordLimit {
		status = model.ComplianceOverflow
	}
	if settings.SoftPageLimit > 0 && pages > settings.SoftPageLimit {
		status = model.ComplianceOverflow
	}

	return model.ComplianceResult{
		WordCount:      wc,
		EstimatedPages: pages,
		Status:         status,
	}
}

func spacingMultiplier(spacing string) float64 {
	switch spacing {
	case "double":
		return 0.5
	case "1.5":
		return 0.67
	default:
		return 1.0
	}
}

func sizeMultiplier(fontSize, baseline float64) float64 {
	if fontSize <= 0 || baseline <= 0 {
		return 1.0
	}
	return baseline / fontSize
}

func marginMultiplier(margins string) float64 {
	switch margins {
	case "narrow":
		return 1.15
	case "wide":
		return 0.85
	default:
		return 1.0
	}
}

var md = goldmark.New()

// WordCount counts prose words in markdown, ignoring syntax markers by
// extracting text from the parsed AST.
func WordCount(markdown string) int {
	src := []byte(markdown)
	doc := md.Parser().Parse(gmtext.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			buf.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return len(strings.Fields(buf.String()))
}

// TruncateWords cuts markdown at the end of the limit-th prose word,
// preserving the original whitespace and structure before the cut. Tokens
// that are pure markdown markers do not count as words.
func TruncateWords(markdown string, limit int) string {
	if limit <= 0 {
		return ""
	}

	words := 0
	inToken := false
	tokenStart := 0
	firstOnLine := true
	tokenLeadsLine := false
	for i, r := range markdown {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !inToken && !isSpace {
			inToken = true
			tokenStart = i
			tokenLeadsLine = firstOnLine
			firstOnLine = false
		}
		if inToken && isSpace {
			if countsAsWord(markdown[tokenStart:i], tokenLeadsLine) {
				words++
				if words == limit {
					return markdown[:i]
				}
			}
			inToken = false
		}
		if r == '\n' {
			firstOnLine = true
		}
	}
	// Trailing token without following whitespace.
	return markdown
}

// countsAsWord reports whether a whitespace-delimited token contributes to
// the word count. Markdown markers are syntax only at the start of a line,
// matching how the parser treats them in WordCount.
func countsAsWord(token string, leadsLine bool) bool {
	if !leadsLine {
		return true
	}
	switch token {
	case "#", "##", "###", "####", "-", "*", "+", ">", "---", "***":
		return false
	}
	return !orderedListMarker(token)
}

// orderedListMarker matches tokens like "1." and "12)".
func orderedListMarker(token string) bool {
	if len(token) < 2 {
		return false
	}
	sep := token[len(token)-1]
	if sep != '.' && sep != ')' {
		return false
	}
	for _, c := range token[:len(token)-1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
