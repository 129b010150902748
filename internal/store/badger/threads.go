package badger

import (
	"fmt"
	"log/slog"
)

// ThreadCache maps thread:{namespace}:{user_id} to an upstream thread id with
// a 7-day TTL. The id is a hint, not a guarantee: callers re-validate against
// upstream and recreate on staleness.
type ThreadCache struct {
	db *DB
}

func threadKey(namespace, userID string) string {
	return fmt.Sprintf("thread:%s:%s", namespace, userID)
}

func (t *ThreadCache) Get(namespace, userID string) string {
	raw, found, err := t.db.get(threadKey(namespace, userID))
	if err != nil {
		slog.Warn("thread cache read failed", "namespace", namespace, "error", err)
		return ""
	}
	if !found {
		return ""
	}
	return string(raw)
}

func (t *ThreadCache) Put(namespace, userID, threadID string) error {
	return t.db.setTTL(threadKey(namespace, userID), []byte(threadID), t.db.cfg.ThreadTTL)
}

func (t *ThreadCache) Delete(namespace, userID string) error {
	return t.db.delete(threadKey(namespace, userID))
}
