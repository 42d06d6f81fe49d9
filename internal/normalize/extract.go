// Package normalize turns the raw document bundle into the canonical
// requirement document: one section per solicitation heading, document-wide
// submission limits, and the extracted eligibility conditions.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/grantline/proposal-cli/internal/model"
)

// Candidate is one section extracted from a single document, before merging
// across versions.
type Candidate struct {
	Key       string
	Title     string
	Prompt    string
	Required  bool
	WordLimit int
	PageLimit float64
}

var (
	limitRe = regexp.MustCompile(`(?i)(?:no more than|not(?: to)? exceed|limit(?:ed)?\s+(?:to|of)|maximum(?:\s+of)?|up to)\s+(\d+(?:\.\d+)?)\s+(words?|pages?)`)
	// numberedHeadingRe matches plain-text outline headings like
	// "1. Project Narrative" or "2) Budget".
	numberedHeadingRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.{3,80})\s*$`)
	requiredRe        = regexp.MustCompile(`(?i)\b(must|required|shall)\b`)
	slugRe            = regexp.MustCompile(`[^a-z0-9]+`)
	sentenceSplitRe   = regexp.MustCompile(`(?m)[.!?](?:\s+|$)`)
	eligibleRe        = regexp.MustCompile(`(?i)eligib`)
	fatalEligibleRe   = regexp.MustCompile(`(?i)\b(must|only|shall|required)\b`)
)

// ExtractSections splits a document into heading-delimited section
// candidates. Markdown headings (levels 1-3) take precedence; documents
// without any fall back to numbered outline headings.
func ExtractSections(src []byte) []Candidate {
	cands := extractMarkdownSections(src)
	if len(cands) == 0 {
		cands = extractOutlineSections(string(src))
	}
	return cands
}

func extractMarkdownSections(src []byte) []Candidate {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(src))

	var cands []Candidate
	var title string
	var body strings.Builder

	flush := func() {
		if title == "" {
			return
		}
		if c, ok := buildCandidate(title, body.String()); ok {
			cands = append(cands, c)
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 3 {
			flush()
			title = nodeText(h, src)
			body.Reset()
			continue
		}
		if title != "" {
			body.WriteString(nodeText(n, src))
			body.WriteString("\n")
		}
	}
	flush()
	return cands
}

func extractOutlineSections(src string) []Candidate {
	var cands []Candidate
	var title string
	var body strings.Builder

	flush := func() {
		if title == "" {
			return
		}
		if c, ok := buildCandidate(title, body.String()); ok {
			cands = append(cands, c)
		}
	}

	for _, line := range strings.Split(src, "\n") {
		if m := numberedHeadingRe.FindStringSubmatch(line); m != nil {
			flush()
			title = strings.TrimSpace(m[1])
			body.Reset()
			continue
		}
		if title != "" {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()
	return cands
}

func buildCandidate(title, body string) (Candidate, bool) {
	prompt := strings.TrimSpace(body)
	key := SectionKey(title)
	if key == "" {
		return Candidate{}, false
	}

	c := Candidate{
		Key:      key,
		Title:    strings.TrimSpace(title),
		Prompt:   prompt,
		Required: requiredRe.MatchString(prompt) || requiredRe.MatchString(title),
	}
	c.WordLimit, c.PageLimit = extractLimits(prompt)
	return c, true
}

// SectionKey derives the stable join key from a section title.
func SectionKey(title string) string {
	key := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(key, "-")
}

func extractLimits(text string) (words int, pages float64) {
	for _, m := range limitRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "word") {
			words = int(n)
		} else {
			pages = n
		}
	}
	return words, pages
}

// ExtractSubmission pulls document-wide format constraints: overall limits,
// font size, and spacing.
func ExtractSubmission(text string) model.SubmissionLimits {
	var limits model.SubmissionLimits
	limits.WordLimit, limits.PageLimit = extractLimits(text)

	if m := regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[\s-]*(?:point|pt)\b`).FindStringSubmatch(text); m != nil {
		if size, err := strconv.ParseFloat(m[1], 64); err == nil {
			limits.FontSize = size
		}
	}
	switch {
	case regexp.MustCompile(`(?i)double[\s-]*spac`).MatchString(text):
		limits.Spacing = "double"
	case regexp.MustCompile(`(?i)1\.5[\s-]*spac`).MatchString(text):
		limits.Spacing = "1.5"
	case regexp.MustCompile(`(?i)single[\s-]*spac`).MatchString(text):
		limits.Spacing = "single"
	}
	return limits
}

// ExtractEligibility pulls eligibility conditions out of the document text.
// A sentence mentioning eligibility phrased as an obligation is fatal; softer
// phrasing is recorded as non-fatal. IDs are content-derived so repeated
// normalization finds the same items.
func ExtractEligibility(text string) []model.EligibilityItem {
	var items []model.EligibilityItem
	for _, sentence := range splitSentences(text) {
		if !eligibleRe.MatchString(sentence) {
			continue
		}
		fatal := fatalEligibleRe.MatchString(sentence)
		confidence := 0.6
		if fatal {
			confidence = 0.9
		}
		items = append(items, model.EligibilityItem{
			ID:         eligibilityID(sentence),
			Text:       sentence,
			Fatal:      fatal,
			Confidence: confidence,
		})
	}
	return items
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceSplitRe.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(strings.ReplaceAll(text[start:loc[1]], "\n", " "))
		if s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, strings.ReplaceAll(rest, "\n", " "))
	}
	return out
}

// eligibilityID hashes the normalized sentence so the ID survives
// re-extraction and override lookups stay stable.
func eligibilityID(sentence string) string {
	norm := slugRe.ReplaceAllString(strings.ToLower(sentence), " ")
	sum := sha256.Sum256([]byte(strings.TrimSpace(norm)))
	return "elig:" + hex.EncodeToString(sum[:6])
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := node.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteString(" ")
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
