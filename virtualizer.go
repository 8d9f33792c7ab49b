// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// virtualizeResponse is ResponseVirtualizer (C4). If resp carries a handle
// and that handle is transient, it allocates a fresh vhandle on cmd's
// connection, binds a new HandleMapEntry to the physical handle the broker
// returned, rewrites the response in place to carry the vhandle instead, and
// appends the new entry to touched so ContextEvictor saves and flushes it
// once the dispatcher has enqueued the response. Non-transient response
// handles are left untouched.
func virtualizeResponse(cmd *Tpm2Command, resp *Tpm2Response, touched []*HandleMapEntry) []*HandleMapEntry {
	if !resp.HasHandle() || !resp.Handle().IsTransient() {
		return touched
	}
	conn := cmd.Connection()
	phandle := resp.Handle()
	vhandle := conn.Transient().NextVhandle()
	entry := &HandleMapEntry{Vhandle: vhandle, Phandle: phandle}
	conn.Transient().Insert(entry)
	resp.SetHandle(vhandle)
	return append(touched, entry)
}
