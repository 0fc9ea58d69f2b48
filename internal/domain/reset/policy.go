package reset

import (
	"time"

	"github.com/a2zsellr/backend/internal/domain/profile"
	"github.com/a2zsellr/backend/internal/domain/shared"
)

// DefaultIntervalDays is how often free-tier content is wiped.
const DefaultIntervalDays = 7

// Policy decides when a free-tier profile is due for a reset.
type Policy struct {
	Interval time.Duration
}

// NewPolicy returns a policy resetting every days days.
func NewPolicy(days int) (Policy, error) {
	if days <= 0 {
		return Policy{}, shared.NewDomainError("INVALID_DAYS", "Reset interval must be at least one day")
	}
	return Policy{Interval: time.Duration(days) * 24 * time.Hour}, nil
}

// DefaultPolicy returns the weekly reset policy.
func DefaultPolicy() Policy {
	p, _ := NewPolicy(DefaultIntervalDays)
	return p
}

// IsDue reports whether a profile last reset at lastReset should be reset
// at now. A profile that was never reset is always due.
func (p Policy) IsDue(lastReset *time.Time, now time.Time) bool {
	if lastReset == nil {
		return true
	}
	return !now.Before(lastReset.Add(p.Interval))
}

// NextResetAt returns when the profile's content will next be wiped.
func (p Policy) NextResetAt(pr *profile.Profile) time.Time {
	return pr.ResetAnchor().Add(p.Interval)
}

// ErrNotDue is returned when a profile was reset again since it was
// selected for an interval-based run.
var ErrNotDue = shared.NewDomainError("NOT_DUE", "Profile was already reset within the interval")

// WipeRequest describes one content wipe.
type WipeRequest struct {
	Type ResetType
	At   time.Time
	// Due, when set, limits the wipe to profiles due under this policy.
	Due *Policy
}

// Check validates the profile as it stands right before its content is
// deleted. Only free profiles are wiped, and interval-based runs skip
// profiles reset since they were selected.
func (r WipeRequest) Check(p *profile.Profile) error {
	if !p.IsFree() {
		return shared.ErrNotEligible
	}
	if r.Due != nil && !r.Due.IsDue(p.LastFreeReset, r.At) {
		return ErrNotDue
	}
	return nil
}

// Cutoff returns the instant before which a last reset makes a profile
// eligible again.
func Cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
