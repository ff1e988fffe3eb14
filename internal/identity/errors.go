package identity

import "errors"

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a backing store could not be reached; retryable.
	ErrUnavailable = errors.New("store unavailable")
	// ErrAlreadyReviewed is returned for confirm/reject on a non-pending entry.
	ErrAlreadyReviewed = errors.New("queue entry already reviewed")
	ErrInvalidMerge    = errors.New("invalid merge")
	// ErrInvalidEmbedding rejects vectors of the wrong dimension.
	ErrInvalidEmbedding = errors.New("invalid embedding")
	// ErrUndecodable marks an image that cannot be decoded.
	ErrUndecodable = errors.New("undecodable image")
)

// IsPermanent reports whether retrying the operation cannot help.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUnavailable):
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidEmbedding),
		errors.Is(err, ErrInvalidMerge),
		errors.Is(err, ErrAlreadyReviewed),
		errors.Is(err, ErrUndecodable):
		return true
	}
	return false
}
