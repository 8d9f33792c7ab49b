// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import (
	"encoding/binary"
	"fmt"
)

// This file plays the role the spec calls "the command/response byte-level
// codec" - parsing the TPM header and handle area. The spec puts the codec
// out of scope and says the core only calls typed accessors; this is the
// smallest codec that satisfies those accessors, grounded on the teacher's
// commandHeader/responseHeader layout in tpm.go (tag uint16, size uint32,
// code uint32, all big-endian). It deliberately does not understand command
// parameters beyond the single FlushContext target-handle special case the
// spec calls out.

const tpmHeaderSize = 10 // tag(2) + size(4) + code(4), per tpm.go's commandHeader/responseHeader

// TagNoSessions and TagSessions are the two command/response structure tags
// TPM2 uses depending on whether an authorization area is present. This
// resource manager never inspects the authorization area, but preserves the
// tag across rewriting since clients and the TPM both care about it.
type StructTag uint16

const (
	TagNoSessions StructTag = 0x8001
	TagSessions   StructTag = 0x8002
)

// Tpm2Command is a typed view over a single command buffer, scoped to a
// single Connection. CommandRewriter and FlushRouter only ever touch it
// through these accessors, never the raw buffer.
type Tpm2Command struct {
	connection  *Connection
	tag         StructTag
	code        CommandCode
	handles     []Handle
	params      []byte
	flushTarget Handle // only meaningful when code == CommandFlushContext
}

// NewTpm2Command builds a Tpm2Command for connection conn. handles holds the
// command's handle-area slots in order (at most 3, per TPM2's maximum
// handle-area size); for FlushContext, handles should be empty and the
// target handle passed as the first 4 bytes (big-endian) of params, from
// which FlushTargetHandle is decoded, matching the real protocol where
// FlushContext's argument lives in the parameter area, not the handle area.
func NewTpm2Command(conn *Connection, tag StructTag, code CommandCode, handles []Handle, params []byte) *Tpm2Command {
	c := &Tpm2Command{
		connection: conn,
		tag:        tag,
		code:       code,
		handles:    append([]Handle(nil), handles...),
		params:     append([]byte(nil), params...),
	}
	if code == CommandFlushContext && len(params) >= 4 {
		c.flushTarget = Handle(binary.BigEndian.Uint32(params[:4]))
	}
	return c
}

// Connection returns the connection this command was received on.
func (c *Tpm2Command) Connection() *Connection { return c.connection }

// CommandCode returns the command's code.
func (c *Tpm2Command) CommandCode() CommandCode { return c.code }

// HandleCount returns the number of handle-area slots in this command.
func (c *Tpm2Command) HandleCount() int { return len(c.handles) }

// Handle returns the handle at handle-area slot i (0-based).
func (c *Tpm2Command) Handle(i int) Handle { return c.handles[i] }

// SetHandle overwrites the handle at handle-area slot i, used by
// CommandRewriter to substitute a physical handle for a virtual one.
func (c *Tpm2Command) SetHandle(i int, h Handle) { c.handles[i] = h }

// FlushTargetHandle returns the handle FlushContext should act on. It is
// only meaningful when CommandCode() == CommandFlushContext.
func (c *Tpm2Command) FlushTargetHandle() Handle { return c.flushTarget }

// Bytes serializes the command back to wire format: header, handle area,
// parameter area, in that order, with CommandSize recomputed to match.
func (c *Tpm2Command) Bytes() []byte {
	size := tpmHeaderSize + len(c.handles)*4 + len(c.params)
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(c.tag))
	binary.BigEndian.PutUint32(buf[2:6], uint32(size))
	binary.BigEndian.PutUint32(buf[6:10], uint32(c.code))
	off := tpmHeaderSize
	for _, h := range c.handles {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(h))
		off += 4
	}
	copy(buf[off:], c.params)
	return buf
}

func (c *Tpm2Command) String() string {
	return fmt.Sprintf("Tpm2Command{code: %s, handles: %d}", c.code, len(c.handles))
}

// Tpm2Response is a typed view over a single response buffer, scoped to the
// Connection whose command produced it. ResponseVirtualizer and the
// Dispatcher only ever touch it through these accessors.
type Tpm2Response struct {
	connection *Connection
	tag        StructTag
	code       CommandCode // the command this is a response to, for logging/attribute lookup
	rc         ResponseCode
	hasHandle  bool
	handle     Handle
	params     []byte
}

// NewTpm2Response builds a response carrying a handle in its handle area,
// e.g. the phandle CreatePrimary returns.
func NewTpm2Response(conn *Connection, tag StructTag, code CommandCode, rc ResponseCode, handle Handle, params []byte) *Tpm2Response {
	return &Tpm2Response{
		connection: conn,
		tag:        tag,
		code:       code,
		rc:         rc,
		hasHandle:  true,
		handle:     handle,
		params:     append([]byte(nil), params...),
	}
}

// NewResponseRC synthesizes a response carrying only a response code and no
// handle or parameters - the shape of every error response this resource
// manager produces itself (quota rejection, load failure, flush-of-unknown,
// broker transport failure), mirroring tpm2_response_new_rc in the original
// C resource manager.
func NewResponseRC(conn *Connection, code CommandCode, rc ResponseCode) *Tpm2Response {
	return &Tpm2Response{
		connection: conn,
		tag:        TagNoSessions,
		code:       code,
		rc:         rc,
	}
}

// Connection returns the connection this response is addressed to.
func (r *Tpm2Response) Connection() *Connection { return r.connection }

// ResponseCode returns the response's result code.
func (r *Tpm2Response) ResponseCode() ResponseCode { return r.rc }

// IsSuccess reports whether the response indicates TPM_RC_SUCCESS.
func (r *Tpm2Response) IsSuccess() bool { return r.rc == Success }

// HasHandle reports whether the response carries a handle in its handle
// area. Only CreatePrimary/Load/LoadExternal-shaped responses do.
func (r *Tpm2Response) HasHandle() bool { return r.hasHandle }

// Handle returns the handle carried in the response. Only valid if
// HasHandle() is true.
func (r *Tpm2Response) Handle() Handle { return r.handle }

// SetHandle overwrites the handle carried in the response, used by
// ResponseVirtualizer to substitute a virtual handle for the physical one
// the broker returned.
func (r *Tpm2Response) SetHandle(h Handle) { r.handle = h }

// Bytes serializes the response back to wire format.
func (r *Tpm2Response) Bytes() []byte {
	size := tpmHeaderSize + len(r.params)
	if r.hasHandle {
		size += 4
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(r.tag))
	binary.BigEndian.PutUint32(buf[2:6], uint32(size))
	binary.BigEndian.PutUint32(buf[6:10], uint32(r.rc))
	off := tpmHeaderSize
	if r.hasHandle {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(r.handle))
		off += 4
	}
	copy(buf[off:], r.params)
	return buf
}

func (r *Tpm2Response) String() string {
	return fmt.Sprintf("Tpm2Response{rc: 0x%08x, hasHandle: %v}", uint32(r.rc), r.hasHandle)
}
