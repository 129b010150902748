// Package store defines the persistence boundaries of the gateway: the
// conversation session store, the upstream-thread cache, the per-thread run
// lock and the lead/client-data reference stores. All of them are TTL-keyed
// last-write-wins KV contracts; the run lock is the only one that needs
// cross-process discipline, and even there the TTL is the crash-safety valve.
package store

import (
	"time"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
)

// SessionStore keeps the bounded conversation history per (bot, user).
//
// Persist truncates to the configured cap (most recent kept) and renews the
// TTL. Load returns an empty history for absent, expired or corrupt payloads;
// corrupt payloads are discarded, never surfaced. There is no concurrent
// writer protection beyond last-write-wins; writes are serialized per
// conversation by the run lock.
type SessionStore interface {
	Load(botID, userID string) []assistant.Message
	Append(botID, userID string, msg assistant.Message) ([]assistant.Message, error)
	Persist(botID, userID string, msgs []assistant.Message) error
}

// ThreadCache maps (namespace, user) to an upstream thread id with a long
// TTL. Callers must re-validate the thread upstream before reuse.
type ThreadCache interface {
	Get(namespace, userID string) string
	Put(namespace, userID, threadID string) error
	Delete(namespace, userID string) error
}

// RunLock is the distributed mutual-exclusion primitive keyed by upstream
// thread id. Acquire is atomic: it fails when another holder exists. The
// stored value is the active run id ("pending" between acquisition and run
// creation). The TTL self-expires stuck locks after a crash.
type RunLock interface {
	// Acquire claims the lock for the thread, returning false when it is
	// already held.
	Acquire(threadID, runID string) (bool, error)
	// Update replaces the stored run id without touching ownership.
	Update(threadID, runID string) error
	// Holder returns the stored run id, or "" when the lock is free.
	Holder(threadID string) (string, error)
	Release(threadID string) error
}

// LeadStore remembers CRM lead ids per normalized customer phone so repeat
// contacts update the same lead instead of creating duplicates.
type LeadStore interface {
	SaveLeadID(phone string, leadID int64) error
	LeadID(phone string) (int64, bool)
}

// ClientDataStore accumulates per-customer facts extracted from messages
// (vehicle brand, model, commune, ...) so the assistant stops re-asking.
type ClientDataStore interface {
	Get(phone string) map[string]string
	Set(phone, field, value string) error
}

// Config carries the TTL and bound knobs for the KV-backed stores.
type Config struct {
	SessionTTL         time.Duration // default 24h
	SessionMaxMessages int           // default 20
	ThreadTTL          time.Duration // default 7 days
	LockTTL            time.Duration // default 5m, clamped to <= 5m
	LeadTTL            time.Duration // default 30 days
}

// WithDefaults fills zero fields and clamps the lock TTL to its ceiling.
func (c Config) WithDefaults() Config {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.SessionMaxMessages <= 0 {
		c.SessionMaxMessages = 20
	}
	if c.ThreadTTL <= 0 {
		c.ThreadTTL = 7 * 24 * time.Hour
	}
	if c.LockTTL <= 0 || c.LockTTL > 5*time.Minute {
		c.LockTTL = 5 * time.Minute
	}
	if c.LeadTTL <= 0 {
		c.LeadTTL = 30 * 24 * time.Hour
	}
	return c
}

// Stores bundles the concrete store set handed to the orchestrator and tools.
type Stores struct {
	Sessions   SessionStore
	Threads    ThreadCache
	RunLocks   RunLock
	Leads      LeadStore
	ClientData ClientDataStore
}
