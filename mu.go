// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// This file keeps the small, concrete subset of the teacher's reflection-based
// mu.go marshaller that an AccessBroker needs: writing/reading TPM's
// 16-bit-length-prefixed "sized buffer" encoding, used here for SavedContext
// blobs. The reflection-driven struct/union marshaller that made up most of
// mu.go has no caller in this repo - this resource manager never marshals a
// TPM parameter area, only handle-area slots and sized context blobs - so it
// is not reproduced.

// MarshalSizedContext encodes raw as a TPM2B-style sized buffer: the wire
// encoding an AccessBroker is expected to use for the SavedContext blobs it
// hands back from ContextSaveFlush, so that a context blob that crosses a
// process boundary (or is merely logged) carries its own length rather than
// relying on callers to know it out of band. See accessbroker.Simulator.
func MarshalSizedContext(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalSizedBuffer(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalSizedContext decodes a TPM2B-style sized buffer produced by
// MarshalSizedContext, the inverse used when an AccessBroker's ContextLoad
// receives a SavedContext blob back from a HandleMapEntry.
func UnmarshalSizedContext(blob []byte) ([]byte, error) {
	return unmarshalSizedBuffer(bytes.NewReader(blob))
}

// marshalSizedBuffer writes b to buf as a 16-bit big-endian length followed
// by the raw bytes, the same TPM2B encoding the teacher's marshalSlice uses
// for isSizedBuffer types.
func marshalSizedBuffer(buf io.Writer, b []byte) error {
	if len(b) > 0xffff {
		return fmt.Errorf("sized buffer too large: %d bytes", len(b))
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(b))); err != nil {
		return fmt.Errorf("cannot write size of sized buffer: %v", err)
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := buf.Write(b); err != nil {
		return fmt.Errorf("cannot write sized buffer contents: %v", err)
	}
	return nil
}

// unmarshalSizedBuffer reads a 16-bit big-endian length followed by that many
// raw bytes, the inverse of marshalSizedBuffer.
func unmarshalSizedBuffer(buf io.Reader) ([]byte, error) {
	var size uint16
	if err := binary.Read(buf, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("cannot read size of sized buffer: %v", err)
	}
	if size == 0 {
		return nil, nil
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(buf, b); err != nil {
		return nil, fmt.Errorf("cannot read sized buffer contents: %v", err)
	}
	return b, nil
}
