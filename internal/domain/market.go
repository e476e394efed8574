package domain

import (
	"math"
	"time"
)

// Market represents a binary-outcome prediction market. Metadata is loaded
// once per run and treated as read-only during replay.
type Market struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Slug     string `json:"slug,omitempty"`
	// EndDate is the scheduled resolution deadline; nil for open-ended markets.
	EndDate *time.Time `json:"end_date,omitempty"`
	// Resolved is true once the market has paid out.
	Resolved bool `json:"resolved"`
	// Resolution is 1 when the Yes outcome paid $1, 0 when No paid $1.
	// Nil while the market is unresolved.
	Resolution *float64  `json:"resolution,omitempty"`
	Volume     float64   `json:"volume"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HoursToResolution returns the number of hours between now and the market's
// resolution deadline. Markets without a deadline return +Inf so that
// deadline-based risk floors never reject them.
func (m Market) HoursToResolution(now time.Time) float64 {
	if m.EndDate == nil {
		return math.Inf(1)
	}
	return m.EndDate.Sub(now).Hours()
}

// ResolvedAt reports whether the market's resolution is in effect at the
// given replay time. Metadata records the eventual outcome; during replay
// the payout only applies once the deadline has passed, so snapshots before
// it still trade normally.
func (m Market) ResolvedAt(ts time.Time) bool {
	if !m.Resolved {
		return false
	}
	if m.EndDate == nil {
		return true
	}
	return !ts.Before(*m.EndDate)
}

// PayoutFor maps the market's resolution value onto the held outcome:
// $1 if the outcome won, $0 if it lost. Returns false when the market has
// not resolved.
func (m Market) PayoutFor(o Outcome) (float64, bool) {
	if !m.Resolved || m.Resolution == nil {
		return 0, false
	}
	yesWon := *m.Resolution >= 0.5
	if (o == OutcomeYes) == yesWon {
		return 1, true
	}
	return 0, true
}
