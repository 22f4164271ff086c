package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongType is returned when the command expects another type than the one stored at key
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

	// ErrInvalidArgument is the parent of every malformed input error
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotInteger means the stored string can not be parsed as a base-10 int64
	ErrNotInteger = fmt.Errorf("%w: value is not an integer or out of range", ErrInvalidArgument)

	// ErrOverflow means the increment would leave the int64 range
	ErrOverflow = fmt.Errorf("%w: increment or decrement would overflow", ErrInvalidArgument)

	// ErrInvalidTTL means a non-positive expiration was requested
	ErrInvalidTTL = fmt.Errorf("%w: invalid expire time", ErrInvalidArgument)
)
