package engine

import (
	"errors"
	"fmt"
)

// FetchError marks a check that failed because the page could not be
// retrieved at all (network failure, unreachable resource, dead browser tab).
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InvalidDataError marks a check whose fetch succeeded but whose content was
// classified as junk: an error page, a bot challenge, or otherwise not a
// product page.
type InvalidDataError struct {
	Reason string
}

func (e *InvalidDataError) Error() string {
	return "invalid product data: " + e.Reason
}

// IsInvalidData reports whether err is an InvalidDataError.
func IsInvalidData(err error) bool {
	var ide *InvalidDataError
	return errors.As(err, &ide)
}
