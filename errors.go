// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import (
	"fmt"

	"golang.org/x/xerrors"
)

// CommandCode identifies a TPM command. Only the subset this resource
// manager branches on is named here; every other command code still flows
// through the dispatcher unchanged.
type CommandCode uint32

const (
	CommandCreatePrimary CommandCode = 0x00000131
	CommandLoad          CommandCode = 0x00000157
	CommandLoadExternal  CommandCode = 0x00000167
	CommandFlushContext  CommandCode = 0x00000165
)

func (c CommandCode) String() string {
	switch c {
	case CommandCreatePrimary:
		return "TPM_CC_CreatePrimary"
	case CommandLoad:
		return "TPM_CC_Load"
	case CommandLoadExternal:
		return "TPM_CC_LoadExternal"
	case CommandFlushContext:
		return "TPM_CC_FlushContext"
	default:
		return fmt.Sprintf("TPM_CC(0x%08x)", uint32(c))
	}
}

// isObjectCreating reports whether a successful response to c may load a new
// transient object, and therefore whether QuotaGate must be consulted.
func (c CommandCode) isObjectCreating() bool {
	switch c {
	case CommandCreatePrimary, CommandLoad, CommandLoadExternal:
		return true
	default:
		return false
	}
}

// ResponseCode is the raw 32-bit response code carried in a Tpm2Response
// header, in the same format the TPM itself would return.
type ResponseCode uint32

// Success is the response code for a successful command.
const Success ResponseCode = 0x00000000

// Format-1 response code construction, TPM2 Part 2 section 6.6. These are
// combined with a base error to build RC_HANDLE|RC_P|RC_1 and similar.
const (
	rcFmt1          ResponseCode = 1 << 7
	rcFmt1ErrorMask ResponseCode = 0x3f

	rcP ResponseCode = 1 << 6 // error is associated with a parameter, handle or session
	rcN1 ResponseCode = 1 << 8
)

// ErrorHandle is the format-1 base error code for a bad handle.
const ErrorHandle ResponseCode = rcFmt1 | 0x0b

// ErrorP1 is the complete TPM_RC_HANDLE | TPM_RC_P | TPM_RC_1 code: a bad
// handle reported against parameter 1. It is the FlushContext-on-unknown-
// handle response named in the spec.
const ErrorP1 ResponseCode = ErrorHandle | rcP | rcN1

// resmgrErrorLevel is added to every error synthesized by this resource
// manager so clients can tell a resource-manager-originated error apart from
// one the TPM itself produced. Mirrors TSS2_RESMGR_ERROR_LEVEL.
const resmgrErrorLevel ResponseCode = 0x00090000

// RC wraps rc with the resource-manager error level, matching the RM_RC
// macro in the original C resource manager.
func RC(rc ResponseCode) ResponseCode {
	return resmgrErrorLevel | rc
}

// RCObjectMemory is returned by QuotaGate when a connection's transient
// HandleMap is full. Mirrors TSS2_RESMGR_RC_OBJECT_MEMORY.
var RCObjectMemory = RC(0x00000001)

// RCGeneralFailure is used for synthesized responses describing a
// resource-manager-internal condition that has no more specific TPM error,
// such as the impossible "FlushContext dispatched to the wrong handler"
// branch called out in SPEC_FULL.md's redesign notes.
var RCGeneralFailure = RC(0x00000002)

// RCContextNotFound is returned by an access broker asked to save/flush a
// physical handle it has no record of. Used by the reference
// accessbroker.Simulator.
var RCContextNotFound = RC(0x00000003)

// QuotaExceededError is returned internally when QuotaGate blocks a command.
// It is never returned to a caller of Enqueue - it only ever drives the
// synthesis of an error Tpm2Response.
type QuotaExceededError struct {
	Connection *Connection
	Command    CommandCode
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("connection %s is over its transient object quota for command %s", e.Connection.ID(), e.Command)
}

// ContextLoadError wraps a failure returned by the access broker while
// loading a saved context for a command's handle area.
type ContextLoadError struct {
	Handle Handle
	RC     ResponseCode
	err    error
}

func (e *ContextLoadError) Error() string {
	return fmt.Sprintf("cannot load context for virtual handle %s: rc 0x%08x: %v", e.Handle, e.RC, e.err)
}

func (e *ContextLoadError) Unwrap() error {
	return e.err
}

// BrokerError wraps a transport-level failure reported by the access broker
// while sending a command.
type BrokerError struct {
	Command CommandCode
	RC      ResponseCode
	err     error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("access broker failed to send command %s: rc 0x%08x: %v", e.Command, e.RC, e.err)
}

func (e *BrokerError) Unwrap() error {
	return e.err
}

// FlushUnknownHandleError is returned (wrapped in a synthesized response,
// never to a caller of Enqueue) when FlushContext names a transient handle
// that is not present in the connection's HandleMap.
type FlushUnknownHandleError struct {
	Handle Handle
}

func (e *FlushUnknownHandleError) Error() string {
	return fmt.Sprintf("handle %s is not a virtual handle managed by this connection", e.Handle)
}

// IsContextLoadFailure reports whether err is a *ContextLoadError, following
// the teacher's IsTPMError/IsTPMHandleError convention of small predicate
// helpers built on xerrors.As rather than type switches at call sites.
func IsContextLoadFailure(err error) bool {
	var e *ContextLoadError
	return xerrors.As(err, &e)
}

// IsQuotaExceeded reports whether err is a *QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var e *QuotaExceededError
	return xerrors.As(err, &e)
}

// IsBrokerFailure reports whether err is a *BrokerError.
func IsBrokerFailure(err error) bool {
	var e *BrokerError
	return xerrors.As(err, &e)
}

// IsFlushUnknownHandle reports whether err is a *FlushUnknownHandleError.
func IsFlushUnknownHandle(err error) bool {
	var e *FlushUnknownHandleError
	return xerrors.As(err, &e)
}
