package httpclient

import (
	"errors"
	"fmt"
	"io"
)

// ResponseTooLargeError is returned when an agent reply exceeds the
// configured body size.
type ResponseTooLargeError struct {
	Limit int64
}

func (e ResponseTooLargeError) Error() string {
	return fmt.Sprintf("agent reply larger than %d bytes", e.Limit)
}

// IsResponseTooLarge reports whether err came from a size-limited read.
func IsResponseTooLarge(err error) bool {
	return errors.As(err, new(ResponseTooLargeError))
}

// ReadAllWithLimit drains r, failing once more than limit bytes arrive.
// A non-positive limit reads without bound.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	switch {
	case err != nil:
		return nil, err
	case int64(len(data)) > limit:
		return nil, ResponseTooLargeError{Limit: limit}
	default:
		return data, nil
	}
}
