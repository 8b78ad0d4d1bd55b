package domain

import (
	"fmt"
	"strings"
)

// OptimalMultiple is large enough that the multiple-of-strike trigger never fires.
const OptimalMultiple = 1e7

// ExercisePolicy describes how the holder is assumed to exercise once vested
type ExercisePolicy string

const (
	// PolicyMultiple forces exercise once the share price reaches Multiple x strike.
	PolicyMultiple ExercisePolicy = "multiple"
	// PolicyOptimal exercises only when intrinsic value beats continuation.
	PolicyOptimal ExercisePolicy = "optimal"
)

// ParseExercisePolicy parses a policy name. An empty name means PolicyMultiple.
func ParseExercisePolicy(s string) (ExercisePolicy, error) {
	switch ExercisePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyMultiple:
		return PolicyMultiple, nil
	case PolicyOptimal:
		return PolicyOptimal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Apply returns in adjusted for the policy
func (p ExercisePolicy) Apply(in Inputs) Inputs {
	if p == PolicyOptimal {
		in.Multiple = OptimalMultiple
	}
	return in
}
