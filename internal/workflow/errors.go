package workflow

import (
	"errors"
	"fmt"

	"github.com/zombor/warranty-tracker/internal/scanning"
	"github.com/zombor/warranty-tracker/internal/warranty"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	// The controller is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrBusy is returned while an extraction, capture or save is already in flight
	ErrBusy = errors.New("operation in progress")

	// ErrStale is returned when the result of an outbound call arrives after the
	// workflow moved on, or when the controller was invalidated by sign-out
	ErrStale = errors.New("workflow changed while the operation was in flight")

	// ErrInvalidDocument is matched by every InvalidDocumentError
	ErrInvalidDocument = errors.New("invalid document")

	// ErrCaptureFailed marks a capture device that could not produce an image
	ErrCaptureFailed = errors.New("capture failed")

	// ErrNoImage is returned for an empty upload
	ErrNoImage = errors.New("no image data")

	// ErrUnknownField is returned when editing a field the form does not have
	ErrUnknownField = errors.New("unknown field")
)

const (
	DefaultRejectionMessage = "This doesn't look like a valid document."
	ExtractionFailedMessage = "Failed to process image with AI. You can enter details manually."
	DuplicateMessage        = "Duplicate Entry: You have already registered a device with this serial number."
	AccessDeniedMessage     = "Permission denied. Check that the record store exists and that this service may write to it."
	SaveFailedMessage       = "Failed to save device."
	CaptureFailedMessage    = "Could not access camera. Please check permissions or try uploading a file."
	AuthRequiredMessage     = "Please sign in to continue."
)

// InvalidDocumentError is the backend's verdict that the image is not a bill or
// warranty card. It is a user-facing outcome, not a fault.
type InvalidDocumentError struct {
	Message string
}

func (e *InvalidDocumentError) Error() string {
	return "invalid document: " + e.Message
}

func (e *InvalidDocumentError) Is(target error) bool {
	return target == ErrInvalidDocument
}

func invalidTransition(op string, from State) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}

// UserMessage converts any workflow error into display text
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var invalid *InvalidDocumentError
	var persist *warranty.PersistenceError
	switch {
	case errors.As(err, &invalid):
		if invalid.Message == "" {
			return DefaultRejectionMessage
		}
		return invalid.Message
	case errors.Is(err, scanning.ErrExtractionFailed):
		return ExtractionFailedMessage
	case errors.Is(err, warranty.ErrDuplicateEntry):
		return DuplicateMessage
	case errors.Is(err, warranty.ErrAuthRequired):
		return AuthRequiredMessage
	case errors.As(err, &persist):
		if persist.AccessDenied() {
			return AccessDeniedMessage
		}
		return SaveFailedMessage
	case errors.Is(err, ErrCaptureFailed):
		return CaptureFailedMessage
	case errors.Is(err, ErrBusy):
		return "Please wait for the current step to finish."
	case errors.Is(err, ErrStale):
		return "This step was cancelled."
	case errors.Is(err, ErrInvalidTransition):
		return "That action is not available right now."
	case errors.Is(err, ErrNoImage):
		return "The selected file is empty."
	case errors.Is(err, ErrUnknownField):
		return "That field cannot be edited."
	}
	return "Something went wrong."
}
