package models

import (
	"math"
	"time"
)

// RatingBaseline is the points every fresh rating row starts with.
const RatingBaseline = 250.0

// Rating holds a user's BeavRank points and counters. Points never go below
// zero; tier and division are derived from points, never stored.
type Rating struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex" json:"user_id"`
	Points    float64   `gorm:"not null" json:"points"`
	Matches   int       `gorm:"not null;default:0" json:"matches"`
	Wins      int       `gorm:"not null;default:0" json:"wins"`
	Losses    int       `gorm:"not null;default:0" json:"losses"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Fixed deltas applied once per finalized match.
const (
	RatingWinDelta  = 2.0
	RatingLossDelta = -1.5
)

// ApplyResult mutates points and counters for one finalized match.
func (r *Rating) ApplyResult(won bool) {
	if won {
		r.Points = roundPoints(r.Points + RatingWinDelta)
		r.Wins++
	} else {
		r.Points = roundPoints(r.Points + RatingLossDelta)
		r.Losses++
	}
	if r.Points < 0 {
		r.Points = 0
	}
	r.Matches++
}

func roundPoints(p float64) float64 {
	return math.Round(p*10) / 10
}

type tierBand struct {
	name string
	min  float64
	max  float64 // exclusive; Elite is open-ended
}

var tierBands = []tierBand{
	{"Bronze", 0, 1000},
	{"Silver", 1000, 1400},
	{"Gold", 1400, 1700},
	{"Diamond", 1700, 2000},
	{"Elite", 2000, math.Inf(1)},
}

// Tier derives the display tier and division from points. Non-Elite bands are
// split into three equal-width divisions, 3 at the bottom and 1 at the top.
// Pure function of points; never mutates stored state.
func Tier(points float64) (name string, division int) {
	if points < 0 {
		points = 0
	}
	for _, b := range tierBands {
		if points >= b.min && points < b.max {
			if math.IsInf(b.max, 1) {
				return b.name, 0
			}
			width := (b.max - b.min) / 3
			div := 3 - int((points-b.min)/width)
			if div < 1 {
				div = 1
			}
			return b.name, div
		}
	}
	return "Elite", 0
}
