package models

import "errors"

// Pipeline failure kinds. Stages wrap these with fmt.Errorf("%w: ...") so the
// handler can map them to a status code with errors.Is.
var (
	ErrMissingFilename   = errors.New("requested_filename is required")
	ErrMalformedFilename = errors.New("malformed requested filename")
	ErrOriginalNotFound  = errors.New("original image not found")
	ErrFetchFailed       = errors.New("could not fetch original image")
	ErrResizeFailed      = errors.New("could not resize image")
	ErrWriteFailed       = errors.New("could not write resized image")
)
