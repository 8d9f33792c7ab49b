// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// admitCommand is QuotaGate (C7). It runs before CommandRewriter for the
// object-creating command set and rejects a command outright, without
// touching the access broker, when the connection's transient HandleMap is
// already at capacity. The returned error is non-nil exactly when the
// response is non-nil, so the dispatcher can log the rejection before
// enqueueing it.
func admitCommand(cmd *Tpm2Command) (*Tpm2Response, error) {
	if !cmd.CommandCode().isObjectCreating() {
		return nil, nil
	}
	if !cmd.Connection().Transient().IsFull() {
		return nil, nil
	}
	err := &QuotaExceededError{Connection: cmd.Connection(), Command: cmd.CommandCode()}
	return NewResponseRC(cmd.Connection(), cmd.CommandCode(), RCObjectMemory), err
}
