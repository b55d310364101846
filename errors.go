// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a CodecError the way every decode/encode boundary in
// this package reports failure (see spec §7).
type ErrorKind int

// Error kinds.
const (
	ErrUnsupportedSignature ErrorKind = iota
	ErrUnsupportedVersion
	ErrNotThisKind
	ErrNeedMoreBytes
	ErrMalformed
	ErrDefinitionNotFound
	ErrTableEmptyWithNoDefinition
	ErrRowWrongFieldCount
	ErrWrongFieldType
	ErrSizeMismatch
	ErrImportTSVIncorrectRow
	ErrImportTSVInvalidVersion
	ErrImportTSVWrongType
	ErrStringNotInPool
	ErrRecordNameNotInPool
	ErrIncompleteDecoding
	ErrIncomplete
	ErrUnsupportedDataType
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedSignature:
		return "UnsupportedSignature"
	case ErrUnsupportedVersion:
		return "UnsupportedVersion"
	case ErrNotThisKind:
		return "NotThisKind"
	case ErrNeedMoreBytes:
		return "NeedMoreBytes"
	case ErrMalformed:
		return "Malformed"
	case ErrDefinitionNotFound:
		return "DefinitionNotFound"
	case ErrTableEmptyWithNoDefinition:
		return "TableEmptyWithNoDefinition"
	case ErrRowWrongFieldCount:
		return "RowWrongFieldCount"
	case ErrWrongFieldType:
		return "WrongFieldType"
	case ErrSizeMismatch:
		return "SizeMismatch"
	case ErrImportTSVIncorrectRow:
		return "ImportTSVIncorrectRow"
	case ErrImportTSVInvalidVersion:
		return "ImportTSVInvalidVersion"
	case ErrImportTSVWrongType:
		return "ImportTSVWrongType"
	case ErrStringNotInPool:
		return "StringNotInPool"
	case ErrRecordNameNotInPool:
		return "RecordNameNotInPool"
	case ErrIncompleteDecoding:
		return "IncompleteDecoding"
	case ErrIncomplete:
		return "Incomplete"
	case ErrUnsupportedDataType:
		return "UnsupportedDataType"
	default:
		return "Unknown"
	}
}

// CodecError is the single error type every codec operation returns,
// carrying the structured fields spec §7 calls for (row/col/expected/got)
// without a type per error kind.
type CodecError struct {
	Kind     ErrorKind
	Row, Col int
	// HasRowCol reports whether Row/Col are meaningful for this error.
	HasRowCol      bool
	Expected, Got  int
	HasExpectedGot bool
	Reason         string
	Cause          error
}

func (e *CodecError) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.HasRowCol {
		msg += fmt.Sprintf(" (row=%d, col=%d)", e.Row, e.Col)
	}
	if e.HasExpectedGot {
		msg += fmt.Sprintf(" (expected=%d, got=%d)", e.Expected, e.Got)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *CodecError) Unwrap() error { return e.Cause }

// newErr builds a bare CodecError of the given kind.
func newErr(kind ErrorKind, reason string) *CodecError {
	return &CodecError{Kind: kind, Reason: reason}
}

func newErrWrap(kind ErrorKind, reason string, cause error) *CodecError {
	return &CodecError{Kind: kind, Reason: reason, Cause: cause}
}

func newMalformed(row, col int, reason string) *CodecError {
	return &CodecError{Kind: ErrMalformed, Row: row, Col: col, HasRowCol: true, Reason: reason}
}

func newRowWrongFieldCount(expected, got int) *CodecError {
	return &CodecError{
		Kind: ErrRowWrongFieldCount, Expected: expected, Got: got, HasExpectedGot: true,
		Reason: "row field count mismatch",
	}
}

func newWrongFieldType(expected, got int) *CodecError {
	return &CodecError{
		Kind: ErrWrongFieldType, Expected: expected, Got: got, HasExpectedGot: true,
		Reason: "cell type mismatch",
	}
}

func newSizeMismatch(expected, got int) *CodecError {
	return &CodecError{
		Kind: ErrSizeMismatch, Expected: expected, Got: got, HasExpectedGot: true,
		Reason: "decoded size does not match",
	}
}

// Kind reports err's ErrorKind if it is (or wraps) a *CodecError.
func Kind(err error) (ErrorKind, bool) {
	var ce *CodecError
	if !errors.As(err, &ce) {
		return 0, false
	}
	return ce.Kind, true
}
