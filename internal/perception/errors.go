package perception

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes perception failures.
type ErrorCode string

const (
	// CodeNoFace indicates no face was detected.
	CodeNoFace ErrorCode = "no_face"
	// CodeLowConfidence indicates face landmarks below the confidence floor.
	CodeLowConfidence ErrorCode = "low_confidence"
	// CodeInsufficientBody indicates the subject is not visible from the waist up.
	CodeInsufficientBody ErrorCode = "insufficient_body"
	// CodeSegmentationFailed indicates masks could not be produced.
	CodeSegmentationFailed ErrorCode = "segmentation_failed"
	// CodeUnavailable indicates the service could not be reached or returned garbage.
	CodeUnavailable ErrorCode = "unavailable"
)

// Error is a typed perception failure carrying the module that raised it.
type Error struct {
	Module   string
	Code     ErrorCode
	Warnings []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "perception %s: %s", e.Module, e.Code)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Warnings) > 0 {
		fmt.Fprintf(&b, " (warnings: %s)", strings.Join(e.Warnings, "; "))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is an input problem no retry can fix: no face,
// face confidence too low, or body not visible from the waist up.
func IsFatal(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Code {
	case CodeNoFace, CodeLowConfidence, CodeInsufficientBody:
		return true
	default:
		return false
	}
}

// CodeOf extracts the error code, or "" when err is not a perception error.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
