/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
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

// Package errors provides the status-carrying errors returned by every
// operation of the sync engine. The transport translates the status into a
// protocol-level response; the engine itself never panics on a failed request.
package errors

import (
	"errors"
	"fmt"
)

// StatusError is an error that carries a status and a stable string code.
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

// WithCode returns a copy of the error with the given code.
func (e statusError) WithCode(code string) StatusError {
	return statusError{err: e.err, status: e.status, code: code}
}

func newStatusError(message string, status StatusCode) StatusError {
	return statusError{err: errors.New(message), status: status}
}

// NotFound creates an error for a resource that does not exist.
func NotFound(message string) StatusError {
	return newStatusError(message, ErrCodeNotFound)
}

// InvalidArgument creates an error for malformed client input.
func InvalidArgument(message string) StatusError {
	return newStatusError(message, ErrCodeInvalidArgument)
}

// AlreadyExists creates an error for a resource that collides with an
// existing one.
func AlreadyExists(message string) StatusError {
	return newStatusError(message, ErrCodeAlreadyExists)
}

// PermissionDenied creates an error for a caller lacking permissions.
func PermissionDenied(message string) StatusError {
	return newStatusError(message, ErrCodePermissionDenied)
}

// ResourceExhausted creates an error for exceeded quotas or rate limits.
func ResourceExhausted(message string) StatusError {
	return newStatusError(message, ErrCodeResourceExhausted)
}

// FailedPrecond creates an error for an operation rejected by the current
// state of the system.
func FailedPrecond(message string) StatusError {
	return newStatusError(message, ErrCodeFailedPrecondition)
}

// Internal creates an error for unexpected server-side failures.
func Internal(message string) StatusError {
	return newStatusError(message, ErrCodeInternal)
}

// Unavailable creates an error for a temporarily unavailable service.
func Unavailable(message string) StatusError {
	return newStatusError(message, ErrCodeUnavailable)
}

// Wrap annotates err with a formatted message while keeping its status.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// StatusOf returns the status of err, or 0 if err carries none.
func StatusOf(err error) StatusCode {
	if err == nil {
		return 0
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status()
	}
	return 0
}

// CodeOf returns the string code of err, or "" if err carries none.
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

// IsClientError reports whether err was caused by the caller.
func IsClientError(err error) bool {
	return StatusOf(err).IsClientError()
}

// IsServerError reports whether err was caused by the server.
func IsServerError(err error) bool {
	return StatusOf(err).IsServerError()
}

// Is, As and Join re-export the standard helpers so callers need only one
// errors import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
	New  = errors.New
)
