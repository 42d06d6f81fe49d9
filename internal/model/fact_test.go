package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactKinds(t *testing.T) {
	for kind, want := range map[FactKind]string{
		FactKindOrg:      "org",
		FactKindProject:  "project",
		FactKindTeam:     "team",
		FactKindEvidence: "evidence",
	} {
		assert.Equal(t, want, string(kind))
	}
}

func TestFactEvidence_Empty(t *testing.T) {
	var nilEvidence *FactEvidence
	assert.True(t, nilEvidence.Empty())
	assert.True(t, (&FactEvidence{Verified: true}).Empty(), "verified flag alone is not a citation")
	assert.False(t, (&FactEvidence{Quote: "a budget of $50,000"}).Empty())
	assert.False(t, (&FactEvidence{File: "rfp_v2.md"}).Empty())
	assert.False(t, (&FactEvidence{Href: "https://grants.example.org/nofo"}).Empty())
}
