package badger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// NormalizePhone strips the separators and plus sign so one customer maps to
// one key regardless of how the channel formatted the number.
func NormalizePhone(phone string) string {
	r := strings.NewReplacer("+", "", "-", "", " ", "")
	return r.Replace(phone)
}

// LeadStore persists lead_id:{normalized_phone} → CRM lead id (30-day TTL).
type LeadStore struct {
	db *DB
}

func leadKey(phone string) string {
	return fmt.Sprintf("lead_id:%s", NormalizePhone(phone))
}

func (l *LeadStore) SaveLeadID(phone string, leadID int64) error {
	return l.db.setTTL(leadKey(phone), []byte(strconv.FormatInt(leadID, 10)), l.db.cfg.LeadTTL)
}

func (l *LeadStore) LeadID(phone string) (int64, bool) {
	raw, found, err := l.db.get(leadKey(phone))
	if err != nil || !found {
		return 0, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ClientDataStore persists client_data:{normalized_phone} → field map
// (30-day TTL). Fields accumulate across messages; last write per field wins.
type ClientDataStore struct {
	db *DB
}

func clientKey(phone string) string {
	return fmt.Sprintf("client_data:%s", NormalizePhone(phone))
}

func (c *ClientDataStore) Get(phone string) map[string]string {
	raw, found, err := c.db.get(clientKey(phone))
	if err != nil {
		slog.Warn("client data read failed", "error", err)
		return map[string]string{}
	}
	if !found {
		return map[string]string{}
	}
	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		_ = c.db.delete(clientKey(phone))
		return map[string]string{}
	}
	return data
}

func (c *ClientDataStore) Set(phone, field, value string) error {
	data := c.Get(phone)
	data[field] = value
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode client data: %w", err)
	}
	return c.db.setTTL(clientKey(phone), raw, c.db.cfg.LeadTTL)
}
