/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package errors provides status-coded errors shared by the collaboration
// core, the storage adapters and the gateway.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusCode classifies an error for the gateway and for logging.
type StatusCode int

const (
	// ErrCodeInvalidArgument indicates the caller supplied a malformed request.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound indicates the requested entity does not exist.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists indicates the entity to create is already present.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodeResourceExhausted indicates a bounded resource ran out.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition indicates the system is not in the state the
	// request expects, e.g. the document moved past the request's version.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates a broken invariant inside the server.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates a dependency, typically storage, is down.
	ErrCodeUnavailable StatusCode = 14
)

// String returns the snake_case name of the code.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeFailedPrecondition:
		return "failed_precondition"
	case ErrCodeInternal:
		return "internal"
	case ErrCodeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// HTTPStatus maps the code to the status used by the JSON admin API.
func (c StatusCode) HTTPStatus() int {
	switch c {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists, ErrCodeFailedPrecondition:
		return http.StatusConflict
	case ErrCodeResourceExhausted:
		return http.StatusTooManyRequests
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the code blames the caller.
func (c StatusCode) IsClientError() bool {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeNotFound, ErrCodeAlreadyExists,
		ErrCodeResourceExhausted, ErrCodeFailedPrecondition:
		return true
	default:
		return false
	}
}

// StatusError is an error that carries a StatusCode and a stable string code
// such as "ErrVersionAhead" that clients can switch on.
type StatusError interface {
	error
	Status() StatusCode
	Code() string
	WithCode(code string) StatusError
}

type statusError struct {
	err    error
	status StatusCode
	code   string
}

func (e statusError) Error() string {
	return e.err.Error()
}

func (e statusError) Status() StatusCode {
	return e.status
}

func (e statusError) Code() string {
	return e.code
}

func (e statusError) Unwrap() error {
	return e.err
}

// Is compares by status and code so that copies returned by WithCode match
// the sentinel they were derived from.
func (e statusError) Is(target error) bool {
	t, ok := target.(statusError)
	if !ok {
		return false
	}
	return e.status == t.status && e.code == t.code && e.err.Error() == t.err.Error()
}

func (e statusError) WithCode(code string) StatusError {
	return statusError{err: e.err, status: e.status, code: code}
}

func newStatusError(message string, status StatusCode) StatusError {
	return statusError{err: errors.New(message), status: status}
}

// NotFound creates a "not found" error.
func NotFound(message string) StatusError {
	return newStatusError(message, ErrCodeNotFound)
}

// InvalidArgument creates an "invalid argument" error.
func InvalidArgument(message string) StatusError {
	return newStatusError(message, ErrCodeInvalidArgument)
}

// AlreadyExists creates an "already exists" error.
func AlreadyExists(message string) StatusError {
	return newStatusError(message, ErrCodeAlreadyExists)
}

// ResourceExhausted creates a "resource exhausted" error.
func ResourceExhausted(message string) StatusError {
	return newStatusError(message, ErrCodeResourceExhausted)
}

// FailedPrecond creates a "failed precondition" error.
func FailedPrecond(message string) StatusError {
	return newStatusError(message, ErrCodeFailedPrecondition)
}

// Internal creates an "internal" error.
func Internal(message string) StatusError {
	return newStatusError(message, ErrCodeInternal)
}

// Unavailable creates an "unavailable" error.
func Unavailable(message string) StatusError {
	return newStatusError(message, ErrCodeUnavailable)
}

// StatusOf returns the status of the first StatusError in err's chain, or 0.
func StatusOf(err error) StatusCode {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status()
	}
	return 0
}

// CodeOf returns the string code of the first StatusError in err's chain.
func CodeOf(err error) string {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code()
	}
	return ""
}

// IsStatus reports whether err carries the given status.
func IsStatus(err error, status StatusCode) bool {
	return StatusOf(err) == status
}

// Is, As and New mirror the standard library so callers need one import.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// MetadataError attaches string key/values to an error, e.g. the current
// document version on a rejection.
type MetadataError struct {
	err      error
	metadata map[string]string
}

func (e MetadataError) Error() string {
	return e.err.Error()
}

func (e MetadataError) Unwrap() error {
	return e.err
}

// Metadata returns a copy of the attached values.
func (e MetadataError) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// WithMetadata wraps err with metadata, merging with any metadata already
// present in its chain.
func WithMetadata(err error, metadata map[string]string) error {
	if err == nil || len(metadata) == 0 {
		return err
	}

	merged := Metadata(err)
	if merged == nil {
		merged = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		merged[k] = v
	}

	if metaErr, ok := err.(MetadataError); ok {
		err = metaErr.err
	}

	return MetadataError{err: err, metadata: merged}
}

// Metadata returns the metadata in err's chain, or nil.
func Metadata(err error) map[string]string {
	var metaErr MetadataError
	if errors.As(err, &metaErr) {
		return metaErr.Metadata()
	}
	return nil
}
