package gallery

import (
	"errors"
	"fmt"
)

// ErrIdentityNotFound is returned when an operation names an unknown identity.
var ErrIdentityNotFound = errors.New("identity not found")

// Reason names the enrollment constraint that failed.
type Reason string

const (
	ReasonMissingFields  Reason = "missing_fields"
	ReasonEmptyCaptures  Reason = "empty_captures"
	ReasonInvalidCapture Reason = "invalid_capture"
	ReasonDuplicateRef   Reason = "duplicate_ref"
	ReasonDuplicateFace  Reason = "duplicate_face"
)

// EnrollError is a rejected enrollment or augmentation. Its message is meant
// to be shown to the operator as is. The gallery is unchanged when it is returned.
type EnrollError struct {
	Reason       Reason
	Message      string
	ConflictID   string
	ConflictName string
}

func (e *EnrollError) Error() string { return e.Message }

func missingFields() *EnrollError {
	return &EnrollError{
		Reason:  ReasonMissingFields,
		Message: "display name and external reference are required",
	}
}

func emptyCaptures() *EnrollError {
	return &EnrollError{
		Reason:  ReasonEmptyCaptures,
		Message: "at least one face capture is required",
	}
}

func invalidCapture(index int, err error) *EnrollError {
	return &EnrollError{
		Reason:  ReasonInvalidCapture,
		Message: fmt.Sprintf("capture %d is unusable: %v", index+1, err),
	}
}

func duplicateRef(ref, id, name string) *EnrollError {
	return &EnrollError{
		Reason:       ReasonDuplicateRef,
		Message:      fmt.Sprintf("external reference %q is already enrolled for %s", ref, name),
		ConflictID:   id,
		ConflictName: name,
	}
}

func duplicateFace(id, name string, distance float64) *EnrollError {
	return &EnrollError{
		Reason:       ReasonDuplicateFace,
		Message:      fmt.Sprintf("this face is already enrolled as %s (distance %.3f)", name, distance),
		ConflictID:   id,
		ConflictName: name,
	}
}
