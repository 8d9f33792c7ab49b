// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

import "github.com/google/uuid"

// Connection is the external collaborator that owns exactly one transient
// HandleMap. It carries a uuid.UUID purely for logging/diagnostics - it
// never participates in a handle-virtualization decision, per
// SPEC_FULL.md's Connection definition.
type Connection struct {
	id        uuid.UUID
	transient *HandleMap
}

// NewConnection creates a Connection whose transient HandleMap has the given
// per-connection capacity.
func NewConnection(transientCapacity int) *Connection {
	return &Connection{
		id:        uuid.New(),
		transient: NewHandleMap(transientCapacity),
	}
}

// ID returns the connection's stable diagnostic identifier.
func (c *Connection) ID() uuid.UUID { return c.id }

// Transient returns the connection's transient-object HandleMap.
func (c *Connection) Transient() *HandleMap { return c.transient }

func (c *Connection) String() string { return c.id.String() }
