package pipeline

import "fmt"

// Stage is a state of a single-feed update cycle.
type Stage int

// Cycle stages in order. Failed is reachable from Fetching, Parsing and
// Persisting.
const (
	StageIdle Stage = iota
	StageFetching
	StageParsing
	StageFiltering
	StagePersisting
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageFetching:
		return "Fetching"
	case StageParsing:
		return "Parsing"
	case StageFiltering:
		return "Filtering"
	case StagePersisting:
		return "Persisting"
	case StageComplete:
		return "Complete"
	case StageFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Percent is the progress reported when the stage is entered.
func (s Stage) Percent() int {
	switch s {
	case StageFetching:
		return 10
	case StageParsing:
		return 35
	case StageFiltering:
		return 60
	case StagePersisting:
		return 85
	case StageComplete:
		return 100
	default:
		return 0
	}
}

// StageError records the stage a cycle failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
