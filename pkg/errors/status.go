/*
 * Copyright 2026 The Tidemark Authors. All rights reserved.
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

// Package errors provides status-coded errors shared across the server so
// that callers can distinguish validation failures, permission failures and
// transient collaborator failures without string matching.
package errors

import "fmt"

// StatusCode represents the coarse error class an error belongs to.
type StatusCode int

const (
	// ErrCodeInvalidArgument indicates the client supplied an argument that
	// is invalid regardless of system state.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound indicates a requested entity does not exist.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists indicates an entity to be created already exists.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodePermissionDenied indicates the caller lacks the rights to
	// execute the operation.
	ErrCodePermissionDenied StatusCode = 7

	// ErrCodeResourceExhausted indicates a quota or result-count cap was hit.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition indicates the system is not in the state the
	// operation requires.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates a broken invariant in the server itself.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates a temporary failure; callers may retry
	// idempotent operations.
	ErrCodeUnavailable StatusCode = 14

	// ErrCodeUnauthenticated indicates missing or invalid credentials.
	ErrCodeUnauthenticated StatusCode = 16
)

// String returns the string representation of the error code.
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
	case ErrCodeUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// IsClientError returns true if the code represents a client-side error.
func (c StatusCode) IsClientError() bool {
	switch c {
	case ErrCodeInvalidArgument, ErrCodeNotFound, ErrCodeAlreadyExists,
		ErrCodePermissionDenied, ErrCodeResourceExhausted, ErrCodeFailedPrecondition,
		ErrCodeUnauthenticated:
		return true
	default:
		return false
	}
}

// IsServerError returns true if the code represents a server-side error.
func (c StatusCode) IsServerError() bool {
	switch c {
	case ErrCodeInternal, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}
