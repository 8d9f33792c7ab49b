// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// controlCode identifies a non-command message on the dispatcher's input
// queue.
type controlCode int

const (
	// controlExit causes the worker to terminate after draining in-flight
	// work. It is the explicit replacement for the original C
	// implementation's null-object shutdown sentinel.
	controlExit controlCode = iota + 1

	// controlCheckCancel carries no instruction of its own; its only job is
	// to wake a blocked dequeue so the worker re-checks its context, per
	// SPEC_FULL.md's "Unblock" contract.
	controlCheckCancel
)
