package itinerary

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying planning failures.
var (
	// ErrGeneration marks any failure to obtain a usable plan from the generator.
	ErrGeneration = errors.New("generation failed")

	// ErrMalformedStop marks generator output missing a required field or
	// carrying an out-of-range value.
	ErrMalformedStop = errors.New("malformed stop")

	// ErrFixedStopViolation marks a plan that dropped, retimed or invented a
	// fixed stop.
	ErrFixedStopViolation = errors.New("fixed stop violation")

	// ErrOverlappingCommitments marks user input with overlapping fixed commitments.
	ErrOverlappingCommitments = errors.New("overlapping fixed commitments")

	// ErrInvalidCommitment marks a commitment that cannot be stored.
	ErrInvalidCommitment = errors.New("invalid commitment")

	// ErrInvalidPreferences marks preferences that cannot drive generation.
	ErrInvalidPreferences = errors.New("invalid preferences")

	// ErrInvalidReason marks an empty or unusable recalculation reason.
	ErrInvalidReason = errors.New("invalid recalculation reason")

	// ErrSwapTargetNotFound marks a swap naming no swappable stop.
	ErrSwapTargetNotFound = errors.New("swap target not found")

	// ErrSwapNotHonored marks a swap result with no replacement in the target slot.
	ErrSwapNotHonored = errors.New("swap not honored")
)

// Operations reported by GenerationError.
const (
	OpGenerate    = "generate"
	OpRecalculate = "recalculate"
)

// GenerationError is the GenerationFailure of the planning pipeline. It always
// matches ErrGeneration and also unwraps to its cause.
type GenerationError struct {
	// Op is OpGenerate or OpRecalculate.
	Op string
	// Reason is a short machine-friendly description ("empty response", ...).
	Reason string
	Err    error
}

// NewGenerationError wraps err as a GenerationFailure for op.
func NewGenerationError(op, reason string, err error) *GenerationError {
	return &GenerationError{Op: op, Reason: reason, Err: err}
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s itinerary: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s itinerary: %s: %v", e.Op, e.Reason, e.Err)
}

// Unwrap exposes both ErrGeneration and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeneration}
	}
	return []error{ErrGeneration, e.Err}
}

// MalformedStopError describes the first invalid field found in generator output.
type MalformedStopError struct {
	// Index is the stop position in the generator's list, or -1 for itinerary-level fields.
	Index   int
	StopID  string
	Field   string
	Problem string
}

func (e *MalformedStopError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed itinerary: field %q %s", e.Field, e.Problem)
	}
	return fmt.Sprintf("malformed stop %d (id %q): field %q %s", e.Index, e.StopID, e.Field, e.Problem)
}

// Is matches ErrMalformedStop.
func (e *MalformedStopError) Is(target error) bool {
	return target == ErrMalformedStop
}

// UserMessage returns the message shown to the traveler for a failed request.
// The previous plan is always retained, so the copy only offers a retry.
func UserMessage(err error) string {
	var genErr *GenerationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &genErr) && genErr.Op == OpRecalculate:
		return "Could not recalculate. Stick to the plan!"
	case errors.As(err, &genErr):
		return "Failed to generate itinerary. Please try again."
	case errors.Is(err, ErrOverlappingCommitments):
		return "Two of your commitments overlap. Adjust them and try again."
	case errors.Is(err, ErrSwapTargetNotFound):
		return "That stop can't be swapped."
	default:
		return err.Error()
	}
}
