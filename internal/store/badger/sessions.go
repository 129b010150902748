package badger

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
)

// SessionStore persists conversation histories as JSON arrays under
// session:{bot_id}:{user_id}, capped and TTL-renewed on every write.
type SessionStore struct {
	db *DB
}

func sessionKey(botID, userID string) string {
	return fmt.Sprintf("session:%s:%s", botID, userID)
}

// Load returns the stored history. Absent, expired and corrupt payloads all
// come back as an empty slice; corrupt payloads are deleted on sight so the
// next write starts clean.
func (s *SessionStore) Load(botID, userID string) []assistant.Message {
	key := sessionKey(botID, userID)
	raw, found, err := s.db.get(key)
	if err != nil {
		slog.Warn("session load failed", "key", key, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	var msgs []assistant.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		slog.Warn("discarding corrupt session payload", "key", key, "error", err)
		_ = s.db.delete(key)
		return nil
	}
	return msgs
}

// Append loads, appends and persists in one call, returning the stored
// (already truncated) history.
func (s *SessionStore) Append(botID, userID string, msg assistant.Message) ([]assistant.Message, error) {
	msgs := append(s.Load(botID, userID), msg)
	if err := s.Persist(botID, userID, msgs); err != nil {
		return nil, err
	}
	return truncate(msgs, s.db.cfg.SessionMaxMessages), nil
}

// Persist writes the history truncated to the most recent cap entries and
// resets the session TTL.
func (s *SessionStore) Persist(botID, userID string, msgs []assistant.Message) error {
	msgs = truncate(msgs, s.db.cfg.SessionMaxMessages)
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.db.setTTL(sessionKey(botID, userID), raw, s.db.cfg.SessionTTL)
}

func truncate(msgs []assistant.Message, max int) []assistant.Message {
	if max > 0 && len(msgs) > max {
		return msgs[len(msgs)-max:]
	}
	return msgs
}
