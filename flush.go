// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// routeFlush is FlushRouter (C6). It only ever runs for a command whose code
// is CommandFlushContext; the dispatcher is responsible for that dispatch,
// but as a defensive measure against a future caller getting that wrong,
// routeFlush itself synthesizes a general-failure response rather than the
// bare success the original C implementation returned through a mistyped
// pointer in the same impossible branch (see SPEC_FULL.md's redesign notes).
// The returned error is non-nil only on the unknown-virtual-handle branch, so
// the dispatcher can log it before enqueueing the response.
func routeFlush(broker AccessBroker, cmd *Tpm2Command) (*Tpm2Response, error) {
	if cmd.CommandCode() != CommandFlushContext {
		return NewResponseRC(cmd.Connection(), cmd.CommandCode(), RCGeneralFailure), nil
	}

	target := cmd.FlushTargetHandle()
	conn := cmd.Connection()

	if !target.IsTransient() {
		// Sessions, persistent objects, etc: forward unchanged.
		resp, rc := broker.SendCommand(cmd)
		if resp == nil {
			resp = NewResponseRC(conn, cmd.CommandCode(), rc)
		}
		return resp, nil
	}

	entry := conn.Transient().Vlookup(target)
	if entry == nil {
		err := &FlushUnknownHandleError{Handle: target}
		return NewResponseRC(conn, cmd.CommandCode(), ErrorP1), err
	}

	conn.Transient().Remove(target)
	return NewResponseRC(conn, cmd.CommandCode(), Success), nil
}
