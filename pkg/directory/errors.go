package directory

import "errors"

var (
	// ErrLookupFailure is returned when location resolution yields no
	// candidates.
	ErrLookupFailure = errors.New("location lookup returned no suggestions")

	// ErrMalformedRecordShape is returned when a page's restaurants payload
	// is neither a record nor a list of records.
	ErrMalformedRecordShape = errors.New("malformed record shape")
)
