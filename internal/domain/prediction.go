package domain

// PredictionStatus is the lifecycle state reported by the generation service
// for one prediction. The machine is: starting → processing → one of
// {succeeded, failed, cancelled}. Repeated polls may observe processing →
// processing; terminal states absorb.
type PredictionStatus string

const (
	StatusStarting   PredictionStatus = "starting"
	StatusProcessing PredictionStatus = "processing"
	StatusSucceeded  PredictionStatus = "succeeded"
	StatusFailed     PredictionStatus = "failed"
	StatusCancelled  PredictionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s PredictionStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Known reports whether s is one of the five defined states.
func (s PredictionStatus) Known() bool {
	switch s {
	case StatusStarting, StatusProcessing, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the machine permits moving from s to next.
// A state may always re-announce itself (repeated polls), except that a
// terminal state only re-announces, never moves.
func (s PredictionStatus) CanTransition(next PredictionStatus) bool {
	if !s.Known() || !next.Known() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if s == StatusStarting && next == StatusProcessing {
		return true
	}
	return next.Terminal()
}
