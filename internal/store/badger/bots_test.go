package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/crm"
)

func TestBotRegistryCRUD(t *testing.T) {
	registry := openTestDB(t).Bots()
	ctx := context.Background()

	if _, err := registry.Get(ctx, "missing"); !errors.Is(err, bots.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	bot := &bots.Bot{
		Name:        "demo",
		PhoneNumber: "+56911",
		AssistantID: "asst_1",
		Actions:     []crm.ActionTemplate{{Name: "get_quote", Path: "/api/quotes/{id}/"}},
	}
	if err := registry.Put(ctx, bot); err != nil {
		t.Fatalf("put: %v", err)
	}
	if bot.ID == "" {
		t.Fatal("put should assign an id")
	}
	if bot.CreatedAt.IsZero() || bot.UpdatedAt.IsZero() {
		t.Error("put should stamp timestamps")
	}

	got, err := registry.Get(ctx, bot.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "demo" || len(got.Actions) != 1 || got.Actions[0].Name != "get_quote" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := registry.Delete(ctx, bot.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := registry.Get(ctx, bot.ID); !errors.Is(err, bots.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBotRegistryFindByNumber(t *testing.T) {
	registry := openTestDB(t).Bots()
	ctx := context.Background()

	for _, b := range []*bots.Bot{
		{Name: "a", PhoneNumber: "+56911"},
		{Name: "b", PhoneNumber: "+56922"},
	} {
		if err := registry.Put(ctx, b); err != nil {
			t.Fatalf("put %s: %v", b.Name, err)
		}
	}

	got, err := registry.FindByNumber(ctx, "+56922")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "b" {
		t.Errorf("found %q, want b", got.Name)
	}

	if _, err := registry.FindByNumber(ctx, "+56900"); !errors.Is(err, bots.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown number, got %v", err)
	}

	all, err := registry.List(ctx)
	if err != nil || len(all) != 2 {
		t.Errorf("list = %d bots err=%v, want 2", len(all), err)
	}
}
