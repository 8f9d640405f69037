package domain

import (
	"errors"
	"fmt"
)

// The engine's error taxonomy. All of these are local, recoverable request
// errors that carry the offending parameters back to the caller; none may
// be swallowed into a zero or default result, since that would misstate
// attribution or optimization confidence.

// InvalidModelError indicates an unrecognized attribution model tag.
type InvalidModelError struct {
	Model string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("invalid attribution model %q", e.Model)
}

// InvalidArgumentError indicates a request parameter outside its accepted
// domain: an unknown tag, a number out of range. Name is the parameter as
// the caller spelled it.
type InvalidArgumentError struct {
	Name   string
	Value  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Name, e.Value, e.Reason)
}

// EmptyRangeError indicates a date range with no conversions or
// touchpoints. Distinct from "zero attributed revenue", which is a valid
// result over a populated range.
type EmptyRangeError struct {
	Range DateRange
	What  string // what was missing: "conversions", "touchpoints", "spend"
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("no %s in range %s", e.What, e.Range)
}

// InsufficientDataError indicates too few days of history for curve
// fitting, quartile binning, or baseline statistics.
type InsufficientDataError struct {
	Channel  string
	What     string // what was being computed: "spend days", "baseline days"
	Required int
	Observed int
}

func (e *InsufficientDataError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("insufficient %s for channel %q: need %d, have %d",
			e.What, e.Channel, e.Required, e.Observed)
	}
	return fmt.Sprintf("insufficient %s: need %d, have %d", e.What, e.Required, e.Observed)
}

// InvalidPeriodError indicates overlapping or zero-length test/control
// periods in an incrementality analysis.
type InvalidPeriodError struct {
	Test    DateRange
	Control DateRange
	Reason  string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid test/control periods (test %s, control %s): %s",
		e.Test, e.Control, e.Reason)
}

// IsRequestError reports whether err belongs to the engine's recoverable
// taxonomy. Handlers map these to HTTP 400 with the offending parameters;
// anything else is a 500.
func IsRequestError(err error) bool {
	var invalidModel *InvalidModelError
	var invalidArgument *InvalidArgumentError
	var emptyRange *EmptyRangeError
	var insufficient *InsufficientDataError
	var invalidPeriod *InvalidPeriodError
	return errors.As(err, &invalidModel) ||
		errors.As(err, &invalidArgument) ||
		errors.As(err, &emptyRange) ||
		errors.As(err, &insufficient) ||
		errors.As(err, &invalidPeriod)
}
