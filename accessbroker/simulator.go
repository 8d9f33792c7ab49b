// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

// Package accessbroker is a reference implementation of
// resourcemgr.AccessBroker: an in-memory TPM simulator with a fixed number
// of physical transient slots, so the resource manager's tests and the demo
// daemon can run without real hardware. It adapts the teacher's
// commandHeader/responseHeader big-endian marshalling idiom into the saved
// context blobs it hands out, rather than inventing a new wire format.
package accessbroker

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/tpm2-software/tpm2-resourcemgr"
)

// Simulator is a minimal, in-memory stand-in for a real TPM's transient
// object table. It implements resourcemgr.AccessBroker.
type Simulator struct {
	mu           sync.Mutex
	maxSlots     int
	loaded       map[resourcemgr.Handle]bool
	nextPhandle  resourcemgr.Handle
	nextObjectID uint32

	// inFlight detects a caller violating the single-threaded-TPM
	// assumption the whole design rests on: SendCommand/ContextLoad/
	// ContextSaveFlush must never run concurrently with one another.
	inFlight int32
}

// NewSimulator constructs a Simulator with room for maxSlots concurrently
// loaded transient objects.
func NewSimulator(maxSlots int) *Simulator {
	return &Simulator{
		maxSlots:    maxSlots,
		loaded:      make(map[resourcemgr.Handle]bool),
		nextPhandle: resourcemgr.Handle(uint32(resourcemgr.HandleTypeTransient) << 24),
	}
}

func (s *Simulator) enter() func() {
	if atomic.AddInt32(&s.inFlight, 1) != 1 {
		panic("accessbroker: simulator observed a concurrent command in flight")
	}
	return func() { atomic.AddInt32(&s.inFlight, -1) }
}

func (s *Simulator) allocPhandleLocked() resourcemgr.Handle {
	s.nextPhandle++
	return s.nextPhandle
}

// SendCommand implements resourcemgr.AccessBroker. CreatePrimary, Load and
// LoadExternal allocate a fresh physical slot and return it in the
// response's handle area, provided one is free; every other command is
// acknowledged with a handle-less success response.
func (s *Simulator) SendCommand(cmd *resourcemgr.Tpm2Command) (*resourcemgr.Tpm2Response, resourcemgr.ResponseCode) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.CommandCode() {
	case resourcemgr.CommandCreatePrimary, resourcemgr.CommandLoad, resourcemgr.CommandLoadExternal:
		if len(s.loaded) >= s.maxSlots {
			return nil, resourcemgr.RCObjectMemory
		}
		phandle := s.allocPhandleLocked()
		s.loaded[phandle] = true
		return resourcemgr.NewTpm2Response(cmd.Connection(), resourcemgr.TagNoSessions, cmd.CommandCode(), resourcemgr.Success, phandle, nil), resourcemgr.Success
	default:
		return resourcemgr.NewResponseRC(cmd.Connection(), cmd.CommandCode(), resourcemgr.Success), resourcemgr.Success
	}
}

// ContextLoad implements resourcemgr.AccessBroker. ctx is a TPM2B-style sized
// buffer produced by ContextSaveFlush; ContextLoad decodes it with
// resourcemgr.UnmarshalSizedContext and ignores the content of the decoded
// object id beyond its role as an opaque identity, allocating a fresh
// physical slot provided one is free.
func (s *Simulator) ContextLoad(ctx []byte) (resourcemgr.Handle, resourcemgr.ResponseCode) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := resourcemgr.UnmarshalSizedContext(ctx); err != nil {
		return resourcemgr.HandleUnassigned, resourcemgr.RCContextNotFound
	}
	if len(s.loaded) >= s.maxSlots {
		return resourcemgr.HandleUnassigned, resourcemgr.RCObjectMemory
	}
	phandle := s.allocPhandleLocked()
	s.loaded[phandle] = true
	return phandle, resourcemgr.Success
}

// ContextSaveFlush implements resourcemgr.AccessBroker. It releases phandle's
// slot and returns a fresh context blob: a 4-byte big-endian object id,
// mirroring the teacher's fixed-width big-endian header fields, wrapped as a
// TPM2B-style sized buffer via resourcemgr.MarshalSizedContext so the blob
// this hands out is self-describing the way a real TPM's saved context is.
func (s *Simulator) ContextSaveFlush(phandle resourcemgr.Handle) ([]byte, resourcemgr.ResponseCode) {
	defer s.enter()()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded[phandle] {
		return nil, resourcemgr.RCContextNotFound
	}
	delete(s.loaded, phandle)

	raw := make([]byte, 4)
	binary.BigEndian.PutUint32(raw, s.nextObjectID)
	s.nextObjectID++

	ctx, err := resourcemgr.MarshalSizedContext(raw)
	if err != nil {
		// raw is always 4 bytes, well under the 0xffff sized-buffer limit.
		panic(err)
	}
	return ctx, resourcemgr.Success
}

// LoadedCount reports how many physical slots are currently occupied, for
// test assertions.
func (s *Simulator) LoadedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loaded)
}
