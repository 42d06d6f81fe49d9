// Package draft generates section content slot by slot, grounding each slot
// in mined facts and recording per-paragraph provenance.
package draft

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grantline/proposal-cli/internal/coverage"
	"github.com/grantline/proposal-cli/internal/model"
)

//go:embed slots.yaml
var slotsYAML []byte

type slotEntry struct {
	Name        string `yaml:"name"`
	Requirement string `yaml:"requirement"`
	Policy      string `yaml:"policy"`
	NA          bool   `yaml:"na"`
}

type registryFile struct {
	Default  []slotEntry `yaml:"default"`
	Sections []struct {
		Match []string    `yaml:"match"`
		Slots []slotEntry `yaml:"slots"`
	} `yaml:"sections"`
}

var registry registryFile

func init() {
	if err := yaml.Unmarshal(slotsYAML, &registry); err != nil {
		panic("draft: embedded slot registry invalid: " + err.Error())
	}
}

// SlotsFor returns the slot specs for a section key, capped at max. The
// first registry entry with a match substring in the key wins; keys matching
// no entry get the generic default slots.
func SlotsFor(sectionKey string, max int) []coverage.SlotSpec {
	entries := registry.Default
match:
	for _, sec := range registry.Sections {
		for _, m := range sec.Match {
			if strings.Contains(sectionKey, m) {
				entries = sec.Slots
				break match
			}
		}
	}

	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}

	specs := make([]coverage.SlotSpec, len(entries))
	for i, e := range entries {
		specs[i] = coverage.SlotSpec{
			Name:        e.Name,
			Requirement: coverage.SlotRequirement(e.Requirement),
			Policy:      coverage.SatisfactionPolicy(e.Policy),
			NA:          e.NA,
		}
	}
	return specs
}

// RegistrySlots builds the full section-key → slot-specs map used by
// slot-based coverage scoring.
func RegistrySlots(sections []model.Section, max int) map[string][]coverage.SlotSpec {
	out := make(map[string][]coverage.SlotSpec, len(sections))
	for _, sec := range sections {
		out[sec.Key] = SlotsFor(sec.Key, max)
	}
	return out
}
