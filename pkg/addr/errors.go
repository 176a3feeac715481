package addr

import (
	"errors"
	"fmt"
)

// ErrorKind tells an unparsable address apart from an unparsable mask.
type ErrorKind int

const (
	MalformedAddress ErrorKind = iota + 1
	MalformedMask
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedAddress:
		return "malformed address"
	case MalformedMask:
		return "malformed mask"
	}
	return "unknown error"
}

// Sentinels matched by errors.Is against a *ParseError of the same kind.
var (
	ErrMalformedAddress = errors.New("malformed address")
	ErrMalformedMask    = errors.New("malformed mask")
)

// ParseError reports a token that could not be turned into an address,
// prefix length or mask.
type ParseError struct {
	Kind  ErrorKind
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Token, e.Err)
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Token)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformedAddress:
		return e.Kind == MalformedAddress
	case ErrMalformedMask:
		return e.Kind == MalformedMask
	}
	return false
}

func addrError(tok string, err error) error {
	return &ParseError{Kind: MalformedAddress, Token: tok, Err: err}
}

func maskError(tok string, err error) error {
	return &ParseError{Kind: MalformedMask, Token: tok, Err: err}
}
