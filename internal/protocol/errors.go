package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode indicates a malformed inbound envelope.
	ErrDecode = errors.New("protocol: decode failed")
	// ErrReferenceResolution indicates a reference token could not be
	// decoded or its entity could not be loaded.
	ErrReferenceResolution = errors.New("protocol: reference resolution failed")
)

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

func resolutionErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReferenceResolution, fmt.Sprintf(format, args...))
}
