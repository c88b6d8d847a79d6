package decoder

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownContract = errors.New("contract not registered")
	ErrUnknownSelector = errors.New("no function matches selector")
	ErrMalformed       = errors.New("malformed call data")
)

// DecodeError reports a call that could not be decoded. It is isolated to
// one transaction.
type DecodeError struct {
	Contract string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode call to %s: %v", e.Contract, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
