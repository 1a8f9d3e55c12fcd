package lock

import (
	"github.com/flowlight0/simpledb-go/file"
)

type level int

const (
	levelShared level = iota
	levelExclusive
)

// ConcurrencyManager is the per-transaction façade over a shared Table: it
// tracks which level this transaction already holds on each block so
// repeated shared requests are no-ops and an exclusive request only ever
// grows (strict two-phase locking never shrinks mid-transaction).
//
// Grounded on spec §4.6 (the source's tx/concurrency.rs ConcurrencyManager
// was not captured in the retrieved excerpt; this façade is built directly
// from the spec's description plus the Table it wraps).
type ConcurrencyManager struct {
	table *Table
	held  map[file.BlockID]level
}

// NewConcurrencyManager constructs a façade bound to table, with no locks
// held yet.
func NewConcurrencyManager(table *Table) *ConcurrencyManager {
	return &ConcurrencyManager{table: table, held: make(map[file.BlockID]level)}
}

// LockShared is a no-op if this transaction already holds any level on
// block; otherwise it acquires a shared lock from the table.
func (c *ConcurrencyManager) LockShared(block file.BlockID) error {
	if _, ok := c.held[block]; ok {
		return nil
	}
	if err := c.table.LockShared(block); err != nil {
		return err
	}
	c.held[block] = levelShared
	return nil
}

// LockExclusive ensures shared is held first (growing S to X), then
// upgrades through the table.
func (c *ConcurrencyManager) LockExclusive(block file.BlockID) error {
	if lvl, ok := c.held[block]; ok && lvl == levelExclusive {
		return nil
	}
	if err := c.LockShared(block); err != nil {
		return err
	}
	if err := c.table.LockExclusive(block); err != nil {
		return err
	}
	c.held[block] = levelExclusive
	return nil
}

// Release drops every lock this transaction holds.
func (c *ConcurrencyManager) Release() {
	for block := range c.held {
		c.table.Unlock(block)
	}
	c.held = make(map[file.BlockID]level)
}
