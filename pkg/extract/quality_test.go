package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		conf float64
		want Tier
	}{
		{100, TierHigh},
		{80, TierHigh},
		{79.9, TierMedium},
		{60, TierMedium},
		{59.9, TierLow},
		{0, TierLow},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierFor(c.conf), "confidence %v", c.conf)
	}
}

func TestAssess(t *testing.T) {
	rec := Record{RegistrationNo: "KA05AB1234", OwnerName: "Ravi Kumar"}

	q := Assess("Regn. No.: KA05AB1234", 85, rec)
	assert.Equal(t, TierHigh, q.QualityTier)
	assert.Equal(t, 2, q.ExtractedFieldCount)
	assert.Equal(t, 21, q.TextLength)
	assert.NotNil(t, q.Suggestions)
	assert.Empty(t, q.Suggestions)

	q = Assess("", 42, Record{})
	assert.Equal(t, TierLow, q.QualityTier)
	assert.Equal(t, []string{SuggestLighting, SuggestFlatness, SuggestFocus}, q.Suggestions)

	q = Assess("x", 60, Record{})
	assert.Empty(t, q.Suggestions)
}
