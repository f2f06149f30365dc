package report

import "errors"

var (
	// ErrDoorNotFound means the requested door id is absent from the
	// vendor door list. The whole report request fails.
	ErrDoorNotFound = errors.New("door not found")

	// ErrInvalidDate means the date parameter failed calendar
	// validation. The whole report request fails.
	ErrInvalidDate = errors.New("invalid date")
)
