// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// rewriteCommand is CommandRewriter (C3). It walks cmd's handle-area slots
// in order and, for each transient slot, ensures the entry it names is
// loaded on the TPM before the command is sent, substituting the physical
// handle into the slot. It returns the touched-entry list so ContextEvictor
// (C5) can save and flush everything this command loaded, and a non-nil
// *Tpm2Response/error only when a context load fails partway through - in
// which case the caller must not call AccessBroker.SendCommand and must
// still run C5 over the partial touched list, per SPEC_FULL.md section 4.2.
func rewriteCommand(broker AccessBroker, cmd *Tpm2Command, touched []*HandleMapEntry) ([]*HandleMapEntry, *Tpm2Response, error) {
	conn := cmd.Connection()
	for i := 0; i < cmd.HandleCount(); i++ {
		h := cmd.Handle(i)
		if !h.IsTransient() {
			continue
		}
		entry := conn.Transient().Vlookup(h)
		if entry == nil {
			// Absent: leave the slot as-is and let the TPM reject it with
			// its own error code, per SPEC_FULL.md step 2.b.
			continue
		}
		if !entry.IsLoaded() {
			phandle, rc := broker.ContextLoad(entry.Context)
			if rc != Success {
				err := &ContextLoadError{Handle: entry.Vhandle, RC: rc}
				return touched, NewResponseRC(conn, cmd.CommandCode(), rc), err
			}
			entry.Phandle = phandle
		}
		cmd.SetHandle(i, entry.Phandle)
		touched = append(touched, entry)
	}
	return touched, nil, nil
}
