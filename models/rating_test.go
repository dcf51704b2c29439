package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyResultDeltas(t *testing.T) {
	r := Rating{Points: RatingBaseline}

	r.ApplyResult(true)
	assert.Equal(t, 252.0, r.Points)
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Matches)

	r.ApplyResult(false)
	assert.Equal(t, 250.5, r.Points)
	assert.Equal(t, 1, r.Losses)
	assert.Equal(t, 2, r.Matches)
}

func TestApplyResultClampsAtZero(t *testing.T) {
	r := Rating{Points: 1.0}
	r.ApplyResult(false)
	assert.Equal(t, 0.0, r.Points)

	// Still zero after further losses, never negative.
	r.ApplyResult(false)
	assert.Equal(t, 0.0, r.Points)
	assert.Equal(t, 2, r.Losses)
}

func TestApplyResultRoundsToOneDecimal(t *testing.T) {
	r := Rating{Points: 250.25}
	r.ApplyResult(false)
	assert.Equal(t, 248.8, r.Points)
}

func TestTierBands(t *testing.T) {
	cases := []struct {
		points   float64
		tier     string
		division int
	}{
		{0, "Bronze", 3},
		{250, "Bronze", 3},
		{400, "Bronze", 2},
		{999.9, "Bronze", 1},
		{1000, "Silver", 3},
		{1399, "Silver", 1},
		{1400, "Gold", 3},
		{1650, "Gold", 1},
		{1700, "Diamond", 3},
		{1999, "Diamond", 1},
		{2000, "Elite", 0},
		{5000, "Elite", 0},
		{-5, "Bronze", 3},
	}
	for _, c := range cases {
		tier, div := Tier(c.points)
		assert.Equal(t, c.tier, tier, "points=%v", c.points)
		assert.Equal(t, c.division, div, "points=%v", c.points)
	}
}
