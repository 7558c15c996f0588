// Package standin fills roster seats the live queue cannot.
//
// A seat is filled either with a synthetic placeholder occupant or with a
// real backup candidate drawn from the participant pool using a
// tolerance-expanding random selection over the seat's score or rating.
package standin

import (
	"errors"
	"fmt"
	"math"

	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/roster"
)

// toleranceLadder is the ascending set of acceptable score/rating gaps
// tried in order until a non-empty candidate pool is found.
var toleranceLadder = []float64{25, 50, 80, 120, 160, 220, 300, 380}

// placeholderHeroName is the fixed display name of synthetic occupants.
const placeholderHeroName = "Standby Challenger"

// ErrPoolExhausted indicates every pool candidate was excluded; callers
// fall back to a placeholder occupant.
var ErrPoolExhausted = errors.New("stand-in pool exhausted")

// Rand is the injected entropy source for candidate draws.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Seat describes the unfilled slot a stand-in is selected for.
// Score and Rating are the reference values for the tolerance ladder;
// either may be absent.
type Seat struct {
	SlotIndex int
	Role      string
	Score     *float64
	Rating    *float64
}

// Candidate is one participant-pool member eligible to back a seat.
type Candidate struct {
	OwnerID  string
	HeroID   string
	HeroName string
	Score    *float64
	Rating   *float64
	Battles  int
	WinRate  *float64
	Status   string
}

// Placeholder synthesizes a non-real occupant for the seat.
func Placeholder(seat Seat) roster.SlotAssignment {
	return roster.SlotAssignment{
		SlotIndex:   seat.SlotIndex,
		Role:        seat.Role,
		OwnerID:     fmt.Sprintf("standin-%d", seat.SlotIndex),
		HeroID:      fmt.Sprintf("standin-hero-%d", seat.SlotIndex),
		HeroName:    placeholderHeroName,
		Ready:       true,
		Standin:     true,
		MatchSource: roster.SourcePlaceholder,
		Status:      "alive",
	}
}

// PickCandidate draws one backup candidate for the seat.
//
// The tolerance ladder expands until some non-excluded candidate's absolute
// gap to the seat's reference value fits; candidates without a comparable
// value are always eligible. One member of the first non-empty pool is drawn
// uniformly at random. Without any reference value the draw is uniform over
// all non-excluded candidates. ErrPoolExhausted is returned when every
// candidate is excluded.
func PickCandidate(seat Seat, pool []Candidate, excluded map[string]bool, rng Rand) (Candidate, error) {
	if rng == nil {
		return Candidate{}, fmt.Errorf("random source is required")
	}

	remaining := make([]Candidate, 0, len(pool))
	for _, candidate := range pool {
		if excluded[candidate.OwnerID] {
			continue
		}
		remaining = append(remaining, candidate)
	}
	if len(remaining) == 0 {
		return Candidate{}, ErrPoolExhausted
	}

	reference, comparable := seatReference(seat)
	if !comparable {
		return draw(remaining, rng), nil
	}

	for _, step := range toleranceLadder {
		eligible := make([]Candidate, 0, len(remaining))
		for _, candidate := range remaining {
			value, ok := candidateValue(seat, candidate)
			if !ok || math.Abs(value-reference) <= step {
				eligible = append(eligible, candidate)
			}
		}
		if len(eligible) > 0 {
			return draw(eligible, rng), nil
		}
	}

	// Every ladder step came up empty: all remaining candidates sit outside
	// the widest tolerance. The caller falls back to a placeholder.
	return Candidate{}, ErrPoolExhausted
}

// Assignment converts a drawn candidate into a roster entry for the seat.
func Assignment(seat Seat, candidate Candidate) roster.SlotAssignment {
	battles := candidate.Battles
	return roster.SlotAssignment{
		SlotIndex:   seat.SlotIndex,
		Role:        seat.Role,
		OwnerID:     candidate.OwnerID,
		HeroID:      candidate.HeroID,
		HeroName:    candidate.HeroName,
		Ready:       true,
		Standin:     true,
		MatchSource: roster.SourcePool,
		Score:       candidate.Score,
		Rating:      candidate.Rating,
		Battles:     &battles,
		WinRate:     candidate.WinRate,
		Status:      "alive",
	}
}

func seatReference(seat Seat) (float64, bool) {
	if seat.Score != nil {
		return *seat.Score, true
	}
	if seat.Rating != nil {
		return *seat.Rating, true
	}
	return 0, false
}

// candidateValue picks the candidate value comparable to the seat's
// reference: score against score, rating against rating.
func candidateValue(seat Seat, candidate Candidate) (float64, bool) {
	if seat.Score != nil {
		if candidate.Score == nil {
			return 0, false
		}
		return *candidate.Score, true
	}
	if candidate.Rating == nil {
		return 0, false
	}
	return *candidate.Rating, true
}

func draw(pool []Candidate, rng Rand) Candidate {
	value := rng.Float64()
	// A degenerate source returning exactly 1.0 must not index past the
	// pool; clamp strictly below 1.0 before scaling.
	if value >= 1.0 {
		value = math.Nextafter(1.0, 0)
	}
	if value < 0 {
		value = 0
	}
	return pool[int(value*float64(len(pool)))]
}
