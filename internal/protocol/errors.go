package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedAddress is returned for addresses outside the configured version's family.
	ErrUnrecognizedAddress = errors.New("unrecognized address")
	// ErrMalformed is matched by every *MalformedError.
	ErrMalformed = errors.New("malformed message")
)

// MalformedError describes a message whose arguments do not fit the layout of its address.
type MalformedError struct {
	Address string
	// Index is the offending argument, or -1 when the list is too short.
	Index  int
	Want   int
	Got    int
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("malformed message %s: want at least %d args, got %d", e.Address, e.Want, e.Got)
	}
	return fmt.Sprintf("malformed message %s: arg %d: %s", e.Address, e.Index, e.Reason)
}

func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }
