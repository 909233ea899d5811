package provider

import (
	"errors"
	"fmt"
)

// Error is returned for any unsuccessful provider call: transport failure,
// timeout, non-2xx status, open circuit or malformed payload.
type Error struct {
	Op         string
	StatusCode int
	Body       string
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err == nil:
		return fmt.Sprintf("provider %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("provider %s failed", e.Op)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a provider failure worth retrying later.
func IsTransient(err error) bool {
	var pErr *Error
	return errors.As(err, &pErr) && pErr.Transient
}
