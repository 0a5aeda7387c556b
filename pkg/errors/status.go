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

package errors

import (
	"fmt"
	"net/http"
)

// StatusCode is the status carried by a StatusError. The values follow the
// gRPC/Connect numbering.
type StatusCode int

const (
	// ErrCodeInvalidArgument means the request is malformed.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound means the requested resource does not exist.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists means the resource collides with an existing one.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodePermissionDenied means the caller may not perform the operation.
	ErrCodePermissionDenied StatusCode = 7

	// ErrCodeResourceExhausted means a quota or rate limit was exceeded.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition means the system is not in the state required
	// by the operation.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal means an invariant of the server has been broken.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable means the service is temporarily unavailable and the
	// caller may retry later.
	ErrCodeUnavailable StatusCode = 14
)

// String returns the snake_case name of the status.
func (c StatusCode) String() string {
	switch c {
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodePermissionDenied:
		return "permission_denied"
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

// IsClientError returns true if the status represents a client-side error.
func (c StatusCode) IsClientError() bool {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeNotFound, ErrCodeAlreadyExists,
		ErrCodePermissionDenied, ErrCodeResourceExhausted, ErrCodeFailedPrecondition:
		return true
	default:
		return false
	}
}

// IsServerError returns true if the status represents a server-side error.
func (c StatusCode) IsServerError() bool {
	return c == ErrCodeInternal || c == ErrCodeUnavailable
}

// HTTPStatus maps the status to the HTTP status code used by the transport.
// Errors without a status are reported as 500.
func (c StatusCode) HTTPStatus() int {
	switch c {
	case ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodePermissionDenied:
		return http.StatusForbidden
	case ErrCodeResourceExhausted:
		return http.StatusTooManyRequests
	case ErrCodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
