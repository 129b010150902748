package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// RunLock implements the per-thread mutual exclusion on run:{thread}:active.
// Acquire is a single check-and-set transaction, so two gateway processes
// sharing one database cannot both claim a thread. The TTL (≤5 min) is the
// only recovery path after a crash mid-turn.
type RunLock struct {
	db *DB
}

func lockKey(threadID string) string {
	return fmt.Sprintf("run:%s:active", threadID)
}

func (l *RunLock) Acquire(threadID, runID string) (bool, error) {
	acquired := false
	err := l.db.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(lockKey(threadID)))
		if err == nil {
			return nil // held by someone else
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}
		entry := badgerdb.NewEntry([]byte(lockKey(threadID)), []byte(runID)).
			WithTTL(l.db.cfg.LockTTL)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return acquired, nil
}

// Update rewrites the stored run id, renewing the TTL. Used once the real
// run id is known after the "pending" placeholder acquisition.
func (l *RunLock) Update(threadID, runID string) error {
	return l.db.setTTL(lockKey(threadID), []byte(runID), l.db.cfg.LockTTL)
}

func (l *RunLock) Holder(threadID string) (string, error) {
	raw, found, err := l.db.get(lockKey(threadID))
	if err != nil {
		return "", fmt.Errorf("read run lock: %w", err)
	}
	if !found {
		return "", nil
	}
	return string(raw), nil
}

func (l *RunLock) Release(threadID string) error {
	return l.db.delete(lockKey(threadID))
}
