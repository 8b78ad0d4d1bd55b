package domain

import (
	"errors"
	"strconv"
)

// ParameterErrorKind classifies which invariant a raw input violated
type ParameterErrorKind int

const (
	KindNonNegative ParameterErrorKind = iota + 1
	KindStepCount
	KindVolatility
	KindRate
)

// String returns the string representation of ParameterErrorKind
func (k ParameterErrorKind) String() string {
	switch k {
	case KindNonNegative:
		return "non_negative"
	case KindStepCount:
		return "step_count"
	case KindVolatility:
		return "volatility"
	case KindRate:
		return "rate"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidNonNegative is returned when a price, time or multiple is negative or not finite.
	ErrInvalidNonNegative = errors.New("invalid non-negative value")

	// ErrInvalidStepCount is returned when the lattice step count is not positive.
	ErrInvalidStepCount = errors.New("invalid step count")

	// ErrInvalidVolatility is returned when volatility is not strictly positive and finite.
	ErrInvalidVolatility = errors.New("invalid volatility")

	// ErrInvalidRate is returned when a rate lies outside the open interval (0, 1).
	ErrInvalidRate = errors.New("invalid rate")

	// ErrStepsAboveLimit is returned when a request asks for more lattice steps than configured.
	ErrStepsAboveLimit = errors.New("step count above configured limit")

	// ErrUnknownPolicy is returned when an exercise policy name is not recognised
	ErrUnknownPolicy = errors.New("unknown exercise policy")
)

// ParameterError names the offending parameter and the value that failed validation.
// It unwraps to one of the ErrInvalid* sentinels.
type ParameterError struct {
	Kind      ParameterErrorKind
	Parameter string
	Value     float64
}

func (e *ParameterError) Error() string {
	value := strconv.FormatFloat(e.Value, 'g', -1, 64)
	switch e.Kind {
	case KindNonNegative:
		return e.Parameter + " must be non-negative and finite, got " + value
	case KindStepCount:
		return e.Parameter + " must be positive, got " + value
	case KindVolatility:
		return "volatility must be positive and finite, got " + value
	case KindRate:
		return e.Parameter + " must be between 0 and 1, got " + value
	default:
		return e.Parameter + " is invalid, got " + value
	}
}

func (e *ParameterError) Unwrap() error {
	switch e.Kind {
	case KindNonNegative:
		return ErrInvalidNonNegative
	case KindStepCount:
		return ErrInvalidStepCount
	case KindVolatility:
		return ErrInvalidVolatility
	case KindRate:
		return ErrInvalidRate
	default:
		return nil
	}
}

// AsParameterError extracts a *ParameterError from an error chain
func AsParameterError(err error) (*ParameterError, bool) {
	var pe *ParameterError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
