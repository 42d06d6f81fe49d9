package facts

import (
	"regexp"
	"strings"
	"time"

	"github.com/grantline/proposal-cli/internal/config"
	"github.com/grantline/proposal-cli/internal/model"
)

var moneyRe = regexp.MustCompile(`^\$\s?\d[\d,]*(?:\.\d+)?[kmbKMB]?$`)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2006",
}

// parseable reports whether a value is machine-checkable: a date in a common
// layout or a dollar amount. Such values earn a confidence boost because they
// can be validated mechanically later.
func parseable(value string) bool {
	value = strings.TrimSpace(value)
	if moneyRe.MatchString(value) {
		return true
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// score applies the evidence and parseability boosts to a base confidence,
// then clamps into the configured band. Nothing is ever fully certain or
// fully discarded: the clamp keeps downstream weighting stable.
func score(base float64, fact model.Fact, cfg config.FactsConfig) float64 {
	c := base
	if fact.Evidence != nil && fact.Evidence.Verified {
		c += cfg.EvidenceBoost
	}
	if parseable(fact.Value) {
		c += cfg.ParseBoost
	}
	if c < cfg.ConfidenceFloor {
		c = cfg.ConfidenceFloor
	}
	if c > cfg.ConfidenceCeil {
		c = cfg.ConfidenceCeil
	}
	return c
}
