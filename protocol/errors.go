package protocol

import (
	"errors"
	"fmt"
)

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind string

const (
	KindMalformed          DecodeErrorKind = "malformed"
	KindUnknownTag         DecodeErrorKind = "unknown_tag"
	KindUnknownTerrainCode DecodeErrorKind = "unknown_terrain_code"
	KindLayoutMismatch     DecodeErrorKind = "layout_mismatch"
)

// DecodeError is returned for any frame that cannot be turned into a typed
// payload. Errors compare equal under errors.Is when their kinds match.
type DecodeError struct {
	Kind DecodeErrorKind
	// Code is the offending tile code for KindUnknownTerrainCode.
	Code int64
	// Tag is the unrecognised type tag for KindUnknownTag.
	Tag string
	Err error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindUnknownTerrainCode:
		return fmt.Sprintf("decode: unknown terrain code %d", e.Code)
	case KindUnknownTag:
		return fmt.Sprintf("decode: unknown message tag %q", e.Tag)
	}
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode: %s", e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrMalformed          = &DecodeError{Kind: KindMalformed}
	ErrUnknownTag         = &DecodeError{Kind: KindUnknownTag}
	ErrUnknownTerrainCode = &DecodeError{Kind: KindUnknownTerrainCode}
	ErrLayoutMismatch     = &DecodeError{Kind: KindLayoutMismatch}
)

func malformed(err error) *DecodeError {
	return &DecodeError{Kind: KindMalformed, Err: err}
}

// ErrorKind returns the DecodeErrorKind of err, or "" when err is not a
// DecodeError.
func ErrorKind(err error) DecodeErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
