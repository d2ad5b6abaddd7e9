// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the engine's error taxonomy. Every error the engine
// returns to a caller carries one Code, so callers can dispatch with
// errors.As instead of string matching, while the wrapped cause is still
// available for logging.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies why an engine operation failed.
type Code int

const (
	// Io is any failure from the host filesystem, passed through verbatim.
	Io Code = iota + 1
	// Serialize is a binary decode/encode failure of an inode or entry record.
	Serialize
	// NotFound means a name is not present in the directory searched.
	NotFound
	// InodeNotFound means an inode record referenced by number is missing.
	InodeNotFound
	// InvalidInput means the caller's arguments are malformed, e.g. an open
	// call requesting neither read nor write access.
	InvalidInput
	// InvalidInodeType means the operation required a directory but found a
	// file, or vice versa.
	InvalidInodeType
	// InvalidFileHandle means an unknown fh, a wrong-direction fh, or an fh
	// bound to a different inode than the one named.
	InvalidFileHandle
	// AlreadyExists means a create target conflicts with a live entry.
	AlreadyExists
	// NotEmpty means a remove or rename-clobber target is a directory that
	// still has entries other than "." and "..".
	NotEmpty
	// Encryption is a failure from a cryptographic primitive, such as a
	// secretbox authentication failure or a malformed filename token.
	Encryption
)

func (c Code) String() string {
	switch c {
	case Io:
		return "Io"
	case Serialize:
		return "Serialize"
	case NotFound:
		return "NotFound"
	case InodeNotFound:
		return "InodeNotFound"
	case InvalidInput:
		return "InvalidInput"
	case InvalidInodeType:
		return "InvalidInodeType"
	case InvalidFileHandle:
		return "InvalidFileHandle"
	case AlreadyExists:
		return "AlreadyExists"
	case NotEmpty:
		return "NotEmpty"
	case Encryption:
		return "Encryption"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every engine-facing package returns. It
// pairs a Code callers can branch on with a human-readable message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match by code when the target is itself an *Error, such
// as the value Sentinel returns, so call sites can write
// errors.Is(err, errs.Sentinel(errs.NotFound)) instead of a type assertion
// plus field read.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New constructs an Error with no wrapped cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that carries cause as its wrapped error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel values, one per Code, returned by Sentinel for use with
// errors.Is. They carry no message; New/Wrap-constructed errors compare equal to them
// through Error.Is because that method only looks at Code.
var (
	ioSentinel                = &Error{Code: Io}
	serializeSentinel         = &Error{Code: Serialize}
	notFoundSentinel          = &Error{Code: NotFound}
	inodeNotFoundSentinel     = &Error{Code: InodeNotFound}
	invalidInputSentinel      = &Error{Code: InvalidInput}
	invalidInodeTypeSentinel  = &Error{Code: InvalidInodeType}
	invalidFileHandleSentinel = &Error{Code: InvalidFileHandle}
	alreadyExistsSentinel     = &Error{Code: AlreadyExists}
	notEmptySentinel          = &Error{Code: NotEmpty}
	encryptionSentinel        = &Error{Code: Encryption}
)

// Sentinel exposes the package's per-code sentinel for use with errors.Is,
// e.g. errors.Is(err, errs.Sentinel(errs.NotFound)).
func Sentinel(code Code) error {
	switch code {
	case Io:
		return ioSentinel
	case Serialize:
		return serializeSentinel
	case NotFound:
		return notFoundSentinel
	case InodeNotFound:
		return inodeNotFoundSentinel
	case InvalidInput:
		return invalidInputSentinel
	case InvalidInodeType:
		return invalidInodeTypeSentinel
	case InvalidFileHandle:
		return invalidFileHandleSentinel
	case AlreadyExists:
		return alreadyExistsSentinel
	case NotEmpty:
		return notEmptySentinel
	case Encryption:
		return encryptionSentinel
	default:
		return nil
	}
}

// CodeOf reports the Code of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func CodeOf(err error) (code Code, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
