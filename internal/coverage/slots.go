package coverage

import (
	"github.com/grantline/proposal-cli/internal/model"
)

// SlotRequirement is how strongly a slot is needed for its section.
type SlotRequirement string

const (
	SlotMust        SlotRequirement = "must"
	SlotShould      SlotRequirement = "should"
	SlotConditional SlotRequirement = "conditional"
)

// SatisfactionPolicy declares what kind of fact satisfies a slot.
type SatisfactionPolicy string

const (
	// PolicyRequiresEvidence needs a fact with a verified citation.
	PolicyRequiresEvidence SatisfactionPolicy = "requires_evidence"
	// PolicyAffirmationOK accepts any non-empty fact.
	PolicyAffirmationOK SatisfactionPolicy = "user_affirmation_ok"
	// PolicyEither accepts verified or unverified facts.
	PolicyEither SatisfactionPolicy = "either"
)

// SlotSpec is one named content slot in a section's discovered
// definition-of-done.
type SlotSpec struct {
	Name        string             `json:"name"`
	Requirement SlotRequirement    `json:"requirement"`
	Policy      SatisfactionPolicy `json:"policy"`
	NA          bool               `json:"na,omitempty"`
}

type slotState int

const (
	slotEmpty slotState = iota
	slotPartial
	slotSatisfied
)

// evaluateSlot classifies one slot against the facts indexed by slot name.
func evaluateSlot(spec SlotSpec, bySlot map[string][]model.Fact) slotState {
	if spec.NA {
		// N/A counts as satisfied and is dropped from the active-must
		// denominator by the caller.
		return slotSatisfied
	}

	facts := bySlot[spec.Name]
	hasAny := false
	hasVerified := false
	for _, f := range facts {
		if f.Value == "" {
			continue
		}
		hasAny = true
		if f.Evidence != nil && f.Evidence.Verified {
			hasVerified = true
		}
	}

	switch spec.Policy {
	case PolicyRequiresEvidence:
		if hasVerified {
			return slotSatisfied
		}
		if hasAny {
			return slotPartial
		}
		return slotEmpty
	case PolicyEither:
		// Verified and unverified facts currently count the same here; kept
		// as-is pending a decision on partial credit for unverified facts.
		if hasAny {
			return slotSatisfied
		}
		return slotEmpty
	default: // user_affirmation_ok
		if hasAny {
			return slotSatisfied
		}
		return slotEmpty
	}
}

// ScoreSlots is the discovered-definition-of-done scoring variant: section
// status derives from per-slot satisfaction instead of drafted content, and
// the score weights should-slots at shouldWeight relative to must-slots.
func ScoreSlots(sections []model.Section, slots map[string][]SlotSpec, facts []model.Fact, shouldWeight float64) ([]model.CoverageRequirement, float64) {
	if len(sections) == 0 {
		return nil, 0
	}

	bySlot := make(map[string][]model.Fact)
	for _, f := range facts {
		bySlot[f.Slot] = append(bySlot[f.Slot], f)
	}

	weight := 1.0 / float64(len(sections))
	reqs := make([]model.CoverageRequirement, 0, len(sections))

	var mustSatisfied, mustActive, shouldSatisfied, shouldTotal float64

	for _, sec := range sections {
		specs := slots[sec.Key]

		anySatisfied := false
		anyPartial := false
		mustOK := true

		for _, spec := range specs {
			state := evaluateSlot(spec, bySlot)

			switch spec.Requirement {
			case SlotShould:
				if !spec.NA {
					shouldTotal++
					if state == slotSatisfied {
						shouldSatisfied++
					}
				}
			default: // must, conditional
				if !spec.NA {
					mustActive++
					if state == slotSatisfied {
						mustSatisfied++
					}
				}
				if state != slotSatisfied {
					mustOK = false
				}
			}

			if state == slotSatisfied && !spec.NA {
				anySatisfied = true
			}
			if state == slotPartial {
				anyPartial = true
			}
		}

		status := model.CoverageMissing
		switch {
		case len(specs) == 0:
			// No discovered slots; fall back to content presence.
			if sec.ContentMd != "" {
				status = model.CoverageComplete
			}
		case mustOK && !anyPartial:
			status = model.CoverageComplete
		case anySatisfied || anyPartial:
			status = model.CoveragePartial
		}

		reqs = append(reqs, model.CoverageRequirement{
			ID:     sec.Key,
			Status: status,
			Weight: weight,
			Risk:   model.RiskLow,
		})
	}

	denom := mustActive + shouldWeight*shouldTotal
	if denom == 0 {
		return reqs, 0
	}
	score := (mustSatisfied + shouldWeight*shouldSatisfied) / denom
	if score > 1 {
		score = 1
	}
	return reqs, score
}
