// DAQctl
// Copyright (C) 2015-2026+ the ATTPC collaboration and contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package daqerr defines the typed error kinds raised by the daqctl control
// plane. Each kind wraps an optional cause with errwrap.Wrapf, in keeping
// with the rest of this codebase's error-handling idiom.
package daqerr

import (
	"fmt"

	errwrap "github.com/pkg/errors"
)

// Kind identifies one of the error categories described in the control
// plane's error-handling design. Comparing a returned error's Kind() lets
// callers branch without string matching.
type Kind int

const (
	// KindTransport means a SOAP or SSH connection failed outright.
	KindTransport Kind = iota
	// KindRemote means the remote endpoint replied with a non-zero error
	// code of its own.
	KindRemote
	// KindPreconditionFailed means an operation's precondition (e.g. a
	// selected config) was not met.
	KindPreconditionFailed
	// KindInconsistentFleet means a fleet-wide reset was requested while
	// the fleet's ECCServers disagree on state.
	KindInconsistentFleet
	// KindPrerequisiteFailed means a fleet-wide start was requested while
	// a prerequisite (e.g. clean staging directories) was not met.
	KindPrerequisiteFailed
	// KindNoTransitionNeeded means the requested target state equals the
	// current state.
	KindNoTransitionNeeded
	// KindNonAdjacentStates means the requested target state is more
	// than one step away from the current state.
	KindNonAdjacentStates
	// KindMalformedXML means an XML payload failed to parse.
	KindMalformedXML
	// KindUnknownConfigType means a SubConfigId carried an unrecognized
	// type attribute.
	KindUnknownConfigType
	// KindSoftTimeout means a task's soft time limit was exceeded.
	KindSoftTimeout
	// KindMissingEntity means a primary-key lookup found nothing.
	KindMissingEntity
	// KindAlreadyRunning means a run was started while one was already
	// in progress.
	KindAlreadyRunning
	// KindNotRunning means a stop call found no running run, or a
	// process lookup (e.g. lsof for dataRouter) found no running process.
	KindNotRunning
	// KindWrongProcess means a process lookup (e.g. lsof) resolved to a
	// command other than the one being searched for.
	KindWrongProcess
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindRemote:
		return "RemoteError"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindInconsistentFleet:
		return "InconsistentFleet"
	case KindPrerequisiteFailed:
		return "PrerequisiteFailed"
	case KindNoTransitionNeeded:
		return "NoTransitionNeeded"
	case KindNonAdjacentStates:
		return "NonAdjacentStates"
	case KindMalformedXML:
		return "MalformedXML"
	case KindUnknownConfigType:
		return "UnknownConfigType"
	case KindSoftTimeout:
		return "SoftTimeout"
	case KindMissingEntity:
		return "MissingEntity"
	case KindAlreadyRunning:
		return "AlreadyRunning"
	case KindNotRunning:
		return "NotRunning"
	case KindWrongProcess:
		return "WrongProcess"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type carrying a Kind, a message, and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a bare Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause, using
// errwrap.Wrapf so the cause's own chain survives in the %+v form.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{
		Kind:    kind,
		Message: msg,
		Cause:   errwrap.Wrapf(cause, msg),
	}
}

// Is reports whether err is a *Error of the given kind. It is the
// recommended way for callers to branch on error kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
