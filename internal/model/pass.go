package model

import "fmt"

// PassState is the state of the feedback loop of one crawl request.
type PassState int

const (
	// InitialPass is the first crawl with the configuration given by the caller.
	InitialPass PassState = iota

	// RefinedPass is the single re-crawl with relaxed parameters.
	RefinedPass

	// Done means no further pass will run.
	Done
)

// String returns a human-readable representation of the state.
func (s PassState) String() string {
	switch s {
	case InitialPass:
		return "initial"
	case RefinedPass:
		return "refined"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states read well in JSON.
func (s PassState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PassState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "initial":
		*s = InitialPass
	case "refined":
		*s = RefinedPass
	case "done":
		*s = Done
	default:
		return fmt.Errorf("unknown pass state %q", string(text))
	}
	return nil
}

// Transition records one move of the feedback state machine.
type Transition struct {
	// From is the state that was left.
	From PassState `json:"from"`

	// To is the state that was entered.
	To PassState `json:"to"`

	// Reason explains why the transition fired.
	Reason string `json:"reason"`

	// MeanScore is the mean evaluation score that drove the decision.
	MeanScore float64 `json:"mean_score"`

	// Scored is the number of scored pages the decision looked at.
	Scored int `json:"scored"`
}
