// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// AccessBroker is the external collaborator that owns the raw channel to the
// TPM device. This package only ever calls it from the single dispatcher
// goroutine, so implementations do not need to be safe for concurrent use
// from multiple goroutines - only safe to call repeatedly, synchronously,
// from one.
type AccessBroker interface {
	// SendCommand sends cmd to the TPM and returns its response. A nil
	// response paired with a non-success rc means a transport-level
	// failure; the dispatcher synthesizes a response from rc in that case.
	SendCommand(cmd *Tpm2Command) (*Tpm2Response, ResponseCode)

	// ContextLoad loads a previously saved context into a fresh physical
	// transient slot, returning the phandle the TPM assigned.
	ContextLoad(ctx []byte) (Handle, ResponseCode)

	// ContextSaveFlush saves phandle's current context and flushes the
	// physical slot in one step, returning the new context blob.
	ContextSaveFlush(phandle Handle) ([]byte, ResponseCode)
}

// Sink is the outbound half of the resource manager's external interface:
// responses leave the worker only by being enqueued on a Sink.
type Sink interface {
	Enqueue(resp *Tpm2Response)
}

// Source is the inbound-configuration half: whatever produces commands for
// this resource manager registers where its responses should go.
type Source interface {
	AddSink(sink Sink)
}
