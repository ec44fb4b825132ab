// Package srs implements the SM-2 variant scheduling algorithm.
// Everything here is pure: same prior state and grade always produce the same
// ease factor, interval and repetition count. Only the due timestamp depends
// on the caller-supplied clock.
package srs

import (
	"fmt"
	"math"
	"time"
)

const (
	// MinEaseFactor keeps cards from becoming impossibly frequent.
	MinEaseFactor = 1.3

	DefaultEaseFactor = 2.5

	// A card graded Again comes back within the same sitting.
	againDelay = 10 * time.Minute
)

// State is the scheduling state carried between reviews.
type State struct {
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
}

// Result is the scheduling state after a review plus the next due timestamp.
type Result struct {
	State
	NextDueAt time.Time
}

// DefaultState returns the parameters for a card that has never been reviewed.
func DefaultState() State {
	return State{EaseFactor: DefaultEaseFactor, IntervalDays: 0, Repetitions: 0}
}

// Initial intervals in days for the first and second successful review.
var (
	firstIntervals  = map[Grade]int{Hard: 1, Good: 1, Easy: 4}
	secondIntervals = map[Grade]int{Hard: 1, Good: 6, Easy: 10}
	easeDeltas      = map[Grade]float64{Again: -0.2, Hard: -0.15, Good: 0, Easy: 0.15}
)

// ComputeNext applies one review to the prior scheduling state.
// Again resets the card: repetitions and interval go to zero and the card is
// due again in ten minutes. Intervals and ease grow without an upper bound.
func ComputeNext(prior State, grade Grade, now time.Time) Result {
	if grade == Again {
		return Result{
			State: State{
				EaseFactor:   floorEase(prior.EaseFactor + easeDeltas[Again]),
				IntervalDays: 0,
				Repetitions:  0,
			},
			NextDueAt: now.Add(againDelay),
		}
	}

	next := prior
	switch {
	case prior.Repetitions == 0:
		next.IntervalDays = firstIntervals[grade]
		next.Repetitions = 1
	case prior.Repetitions == 1:
		next.IntervalDays = secondIntervals[grade]
		next.Repetitions = 2
	default:
		switch grade {
		case Hard:
			next.IntervalDays = roundDays(float64(prior.IntervalDays) * 1.2)
		case Good:
			next.IntervalDays = roundDays(float64(prior.IntervalDays) * prior.EaseFactor)
		case Easy:
			next.IntervalDays = roundDays(float64(prior.IntervalDays) * prior.EaseFactor * 1.3)
		}
		next.Repetitions = prior.Repetitions + 1
	}

	next.EaseFactor = floorEase(prior.EaseFactor + easeDeltas[grade])

	return Result{State: next, NextDueAt: now.AddDate(0, 0, next.IntervalDays)}
}

// FormatInterval renders an interval in days as a human-readable duration.
func FormatInterval(days int) string {
	switch {
	case days == 0:
		return "10 minutes"
	case days == 1:
		return "1 day"
	case days < 30:
		return fmt.Sprintf("%d days", days)
	case days < 365:
		months := int(math.Round(float64(days) / 30))
		return fmt.Sprintf("%d %s", months, plural("month", months))
	default:
		years := int(math.Round(float64(days) / 365))
		return fmt.Sprintf("%d %s", years, plural("year", years))
	}
}

func floorEase(ef float64) float64 {
	return math.Max(MinEaseFactor, ef)
}

func roundDays(d float64) int {
	return int(math.Round(d))
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
