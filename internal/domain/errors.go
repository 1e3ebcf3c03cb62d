package domain

import "errors"

// Domain errors
var (
	ErrNoScoreFound     = errors.New("no score announcement found")
	ErrMalformedScore   = errors.New("score announcement has malformed numbers")
	ErrNoRecords        = errors.New("no score records found")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)
