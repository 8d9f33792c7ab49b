// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import "fmt"

// Handle is a TPM handle. The top byte (bits 31:24) is the handle type and
// determines how the handle is routed by the resource manager.
type Handle uint32

// HandleUnassigned is the Phandle value of a HandleMapEntry that holds no
// physical TPM slot.
const HandleUnassigned Handle = 0

// HandleType identifies the category of entity a Handle refers to. Only
// HandleTypeTransient is ever virtualized by this resource manager; every
// other type passes through to the TPM unchanged.
type HandleType uint8

const (
	HandleTypePCR           HandleType = 0x00
	HandleTypeNVIndex       HandleType = 0x01
	HandleTypeHMACSession   HandleType = 0x02
	HandleTypePolicySession HandleType = 0x03
	HandleTypePermanent     HandleType = 0x40
	HandleTypeTransient     HandleType = 0x80
	HandleTypePersistent    HandleType = 0x81
)

func (t HandleType) String() string {
	switch t {
	case HandleTypePCR:
		return "pcr"
	case HandleTypeNVIndex:
		return "nv-index"
	case HandleTypeHMACSession:
		return "hmac-session"
	case HandleTypePolicySession:
		return "policy-session"
	case HandleTypePermanent:
		return "permanent"
	case HandleTypeTransient:
		return "transient"
	case HandleTypePersistent:
		return "persistent"
	default:
		return fmt.Sprintf("handle-type(0x%02x)", uint8(t))
	}
}

// handleTypeShift is the number of bits the handle type occupies the top of.
const handleTypeShift = 24

// Type returns the handle type encoded in the top byte of the handle.
func (h Handle) Type() HandleType {
	return HandleType(h >> handleTypeShift)
}

// IsTransient reports whether h is a transient object handle - the only kind
// this resource manager virtualizes.
func (h Handle) IsTransient() bool {
	return h.Type() == HandleTypeTransient
}

func (h Handle) String() string {
	return fmt.Sprintf("0x%08x", uint32(h))
}

// vhandleBase is the first virtual handle issued to any connection's
// HandleMap. Starting above zero keeps HandleUnassigned reserved. Virtual
// handles share the transient range with physical handles (the fake broker
// and accessbroker.Simulator hand out 0x80000001 upwards), so a handle value
// alone does not tell a vhandle from a phandle.
const vhandleBase Handle = Handle(HandleTypeTransient)<<handleTypeShift | 0x00000000

// Common permanent/hierarchy handles, used only by tests and the reference
// access broker - the core never branches on a specific permanent handle
// value, only on HandleType.
const (
	HandleOwner       Handle = Handle(HandleTypePermanent)<<handleTypeShift | 0x000001
	HandleNull        Handle = Handle(HandleTypePermanent)<<handleTypeShift | 0x000007
	HandleLockout     Handle = Handle(HandleTypePermanent)<<handleTypeShift | 0x00000a
	HandleEndorsement Handle = Handle(HandleTypePermanent)<<handleTypeShift | 0x00000b
	HandlePlatform    Handle = Handle(HandleTypePermanent)<<handleTypeShift | 0x00000c
)
