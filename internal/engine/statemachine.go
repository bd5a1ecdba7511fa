package engine

import (
	"time"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Policy thresholds. These are named configuration, not derived values; they
// can be overridden per StateMachine.
const (
	// DefaultErrorThreshold is the consecutive-failure count at which an
	// active product degrades to the error state.
	DefaultErrorThreshold = 5
	// DefaultPossiblyGoneThreshold is the consecutive invalid-data count
	// after which the user is told the page may be permanently gone.
	DefaultPossiblyGoneThreshold = 10
	// DefaultErrorFloor is the minimum retry spacing for products already in
	// the error state.
	DefaultErrorFloor = 5 * time.Minute
)

// FailureKind distinguishes the two recoverable per-product failures.
type FailureKind string

const (
	FailureFetch   FailureKind = "fetch_failure"
	FailureInvalid FailureKind = "invalid_data"
)

// StateMachine owns monitor-state transitions and error counters. The engine
// is the only writer of MonitorState, ErrorCount, InvalidCount and LastError
// on the automatic edges; pause and resume are the user-triggered ones.
type StateMachine struct {
	ErrorThreshold        int
	PossiblyGoneThreshold int
	ErrorFloor            time.Duration
	Backoff               *BackoffPolicy
}

// NewStateMachine creates a state machine with the default policy thresholds.
func NewStateMachine(backoff *BackoffPolicy) *StateMachine {
	return &StateMachine{
		ErrorThreshold:        DefaultErrorThreshold,
		PossiblyGoneThreshold: DefaultPossiblyGoneThreshold,
		ErrorFloor:            DefaultErrorFloor,
		Backoff:               backoff,
	}
}

// DueForCheck reports whether an eligible product may be checked now, or is
// still inside its backoff window. Products with no recorded errors are
// always due. Error-state products get the floor on top of the computed
// backoff; recently-erroring but still-active products get exponential
// spacing without an artificial floor.
func (m *StateMachine) DueForCheck(p *models.Product, now time.Time) bool {
	if !p.Eligible() {
		return false
	}
	if p.ErrorCount == 0 || p.LastChecked == nil {
		return true
	}

	delay := m.Backoff.Delay(p.ErrorCount)
	if p.MonitorState == models.MonitorError && delay < m.ErrorFloor {
		delay = m.ErrorFloor
	}
	return now.Sub(*p.LastChecked) >= delay
}

// FailureOutcome reports the notable consequences of a recorded failure.
type FailureOutcome struct {
	// EnteredError is true only on the exact failure that reached the error
	// threshold; subsequent failures do not re-trigger it.
	EnteredError bool
	// PossiblyGone is true only on the exact invalid-data result that reached
	// the possibly-gone streak threshold.
	PossiblyGone bool
}

// RecordFailure applies a failed check to the product. Both fetch failures
// and junk classifications count toward the error threshold; only unbroken
// invalid-data streaks count toward the possibly-gone notice.
func (m *StateMachine) RecordFailure(p *models.Product, kind FailureKind, message string, now time.Time) FailureOutcome {
	var out FailureOutcome

	p.ErrorCount++
	p.LastError = &message
	ts := now
	p.LastChecked = &ts

	if kind == FailureInvalid {
		p.InvalidCount++
		if p.InvalidCount == m.PossiblyGoneThreshold {
			out.PossiblyGone = true
		}
	} else {
		p.InvalidCount = 0
	}

	if p.MonitorState == models.MonitorActive && p.ErrorCount == m.ErrorThreshold {
		p.MonitorState = models.MonitorError
		out.EnteredError = true
	}

	return out
}

// Pause excludes the product from scheduling. It preserves everything else.
func (m *StateMachine) Pause(p *models.Product) {
	p.MonitorState = models.MonitorPaused
}

// Resume returns a paused product to active monitoring with a clean slate:
// error counters reset and last error cleared.
func (m *StateMachine) Resume(p *models.Product) {
	p.MonitorState = models.MonitorActive
	p.ErrorCount = 0
	p.InvalidCount = 0
	p.LastError = nil
}
