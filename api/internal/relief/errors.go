package relief

import "errors"

var (
	// ErrInvalidSelection: value is not one of the options of the current step.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrFutureDate: selected date is after today.
	ErrFutureDate = errors.New("date is in the future")
	// ErrOutOfOrder: input belongs to a different wizard step.
	ErrOutOfOrder = errors.New("input does not match current step")

	ErrNotAcceptingPhotos = errors.New("not accepting photos")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrBatchConflict      = errors.New("photo belongs to another batch")

	ErrUpload      = errors.New("upload failed")
	ErrPersistence = errors.New("data write failed")
)
