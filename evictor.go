// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// evictTouched is ContextEvictor (C5). It runs unconditionally after every
// command, success or failure, over the touched-entry list built by
// CommandRewriter and ResponseVirtualizer, saving and flushing each loaded
// entry so its physical slot is released before the next command runs. A
// saveflush failure is logged at warning level and the entry is left loaded
// (its stale Phandle stays non-zero) - the next command that names it skips
// ContextLoad, uses that Phandle as-is, and retries the saveflush at its own
// end, so the core never escalates the failure itself.
func evictTouched(broker AccessBroker, logger Logger, touched []*HandleMapEntry) {
	for _, entry := range touched {
		if !entry.IsLoaded() {
			continue
		}
		phandle := entry.Phandle
		ctx, rc := broker.ContextSaveFlush(phandle)
		if rc != Success {
			logger.WithFields(Fields{
				"vhandle": entry.Vhandle,
				"phandle": phandle,
				"rc":      rc,
			}).Warnf("context saveflush failed, leaving entry loaded")
			continue
		}
		entry.Context = ctx
		entry.Phandle = HandleUnassigned
	}
}
