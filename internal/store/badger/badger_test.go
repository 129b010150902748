package badger

import (
	"testing"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
	"github.com/nextlevelbuilder/turnero/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{InMemory: true}, store.Config{})
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRoundTrip(t *testing.T) {
	stores := openTestDB(t).Stores()

	msgs := []assistant.Message{
		{Role: "user", Content: "hola"},
		{Role: "assistant", Content: "¡hola! ¿en qué te ayudo?"},
	}
	if err := stores.Sessions.Persist("bot1", "+5691111", msgs); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got := stores.Sessions.Load("bot1", "+5691111")
	if len(got) != 2 || got[0].Content != "hola" || got[1].Role != "assistant" {
		t.Errorf("unexpected history: %+v", got)
	}
}

func TestSessionLoadAbsent(t *testing.T) {
	stores := openTestDB(t).Stores()
	if got := stores.Sessions.Load("nope", "nobody"); len(got) != 0 {
		t.Errorf("expected empty history, got %+v", got)
	}
}

func TestSessionCorruptPayloadDiscarded(t *testing.T) {
	db := openTestDB(t)
	stores := db.Stores()

	if err := db.setTTL(sessionKey("bot1", "u1"), []byte("{not json]"), time.Hour); err != nil {
		t.Fatalf("seed corrupt payload: %v", err)
	}
	if got := stores.Sessions.Load("bot1", "u1"); len(got) != 0 {
		t.Errorf("corrupt payload should load as empty, got %+v", got)
	}
	// Key must be gone so the next write starts clean.
	if _, found, _ := db.get(sessionKey("bot1", "u1")); found {
		t.Error("corrupt payload was not deleted")
	}
}

// Appending a 25th message must leave exactly 20 stored, most recent kept.
func TestSessionCapKeepsMostRecent(t *testing.T) {
	stores := openTestDB(t).Stores()

	for i := 0; i < 25; i++ {
		if _, err := stores.Sessions.Append("bot1", "u1", assistant.Message{
			Role:    "user",
			Content: string(rune('a' + i)),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got := stores.Sessions.Load("bot1", "u1")
	if len(got) != 20 {
		t.Fatalf("expected 20 messages after cap, got %d", len(got))
	}
	if got[0].Content != string(rune('a'+5)) {
		t.Errorf("oldest retained should be the 6th message, got %q", got[0].Content)
	}
	if got[19].Content != string(rune('a'+24)) {
		t.Errorf("newest message lost: %q", got[19].Content)
	}
}

func TestThreadCache(t *testing.T) {
	stores := openTestDB(t).Stores()

	if got := stores.Threads.Get("asst_1", "u1"); got != "" {
		t.Errorf("expected empty cache, got %q", got)
	}
	if err := stores.Threads.Put("asst_1", "u1", "thread_abc"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := stores.Threads.Get("asst_1", "u1"); got != "thread_abc" {
		t.Errorf("get = %q, want thread_abc", got)
	}
	if err := stores.Threads.Delete("asst_1", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := stores.Threads.Get("asst_1", "u1"); got != "" {
		t.Errorf("expected empty after delete, got %q", got)
	}
}

func TestRunLockMutualExclusion(t *testing.T) {
	stores := openTestDB(t).Stores()
	locks := stores.RunLocks

	ok, err := locks.Acquire("thread_1", "run_a")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = locks.Acquire("thread_1", "run_b")
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Fatal("second acquire must fail while lock is held")
	}

	holder, err := locks.Holder("thread_1")
	if err != nil || holder != "run_a" {
		t.Errorf("holder = %q err=%v, want run_a", holder, err)
	}

	if err := locks.Release("thread_1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = locks.Acquire("thread_1", "run_b")
	if err != nil || !ok {
		t.Errorf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestRunLockUpdateKeepsOwnership(t *testing.T) {
	locks := openTestDB(t).Stores().RunLocks

	if ok, _ := locks.Acquire("thread_1", "pending"); !ok {
		t.Fatal("acquire failed")
	}
	if err := locks.Update("thread_1", "run_real"); err != nil {
		t.Fatalf("update: %v", err)
	}
	holder, _ := locks.Holder("thread_1")
	if holder != "run_real" {
		t.Errorf("holder = %q, want run_real", holder)
	}
	if ok, _ := locks.Acquire("thread_1", "run_other"); ok {
		t.Error("update must not release the lock")
	}
}

func TestLeadStore(t *testing.T) {
	stores := openTestDB(t).Stores()

	if _, found := stores.Leads.LeadID("+56 9 1234-5678"); found {
		t.Error("expected no lead id initially")
	}
	if err := stores.Leads.SaveLeadID("+56 9 1234-5678", 4211); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Different formatting of the same number resolves to the same key.
	id, found := stores.Leads.LeadID("56912345678")
	if !found || id != 4211 {
		t.Errorf("lead id = %d found=%v, want 4211", id, found)
	}
}

func TestClientDataAccumulates(t *testing.T) {
	stores := openTestDB(t).Stores()

	if err := stores.ClientData.Set("+56911", "marca", "Toyota"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := stores.ClientData.Set("+56911", "comuna", "Santiago"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := stores.ClientData.Get("+56911")
	if got["marca"] != "Toyota" || got["comuna"] != "Santiago" {
		t.Errorf("unexpected client data: %v", got)
	}
}
