package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/turnero/internal/bots"
)

const botPrefix = "bot:"

// BotRegistry implements bots.Repository on badger. It doubles as the local
// cache in front of the Postgres registry and as the sole registry in
// standalone deployments. Bot records never expire; they are removed
// explicitly.
type BotRegistry struct {
	db *DB
}

// Bots returns the bot registry backed by this database.
func (d *DB) Bots() *BotRegistry {
	return &BotRegistry{db: d}
}

func botKey(id string) string {
	return botPrefix + id
}

func (r *BotRegistry) Get(_ context.Context, id string) (*bots.Bot, error) {
	raw, found, err := r.db.get(botKey(id))
	if err != nil {
		return nil, fmt.Errorf("get bot %s: %w", id, err)
	}
	if !found {
		return nil, bots.ErrNotFound
	}
	var bot bots.Bot
	if err := json.Unmarshal(raw, &bot); err != nil {
		return nil, fmt.Errorf("decode bot %s: %w", id, err)
	}
	return &bot, nil
}

// FindByNumber scans the registry for a bot with the given phone number.
// Registries are small (tens of bots) so a prefix scan is fine.
func (r *BotRegistry) FindByNumber(ctx context.Context, number string) (*bots.Bot, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, bot := range all {
		if bot.PhoneNumber == number {
			return bot, nil
		}
	}
	return nil, bots.ErrNotFound
}

func (r *BotRegistry) List(_ context.Context) ([]*bots.Bot, error) {
	var out []*bots.Bot
	err := r.db.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(botPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(raw []byte) error {
				var bot bots.Bot
				if err := json.Unmarshal(raw, &bot); err != nil {
					return fmt.Errorf("decode bot %s: %w", it.Item().Key(), err)
				}
				out = append(out, &bot)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	return out, nil
}

func (r *BotRegistry) Put(_ context.Context, bot *bots.Bot) error {
	if bot.ID == "" {
		bot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now

	raw, err := json.Marshal(bot)
	if err != nil {
		return fmt.Errorf("encode bot %s: %w", bot.ID, err)
	}
	if err := r.db.setTTL(botKey(bot.ID), raw, 0); err != nil {
		return fmt.Errorf("put bot %s: %w", bot.ID, err)
	}
	return nil
}

func (r *BotRegistry) Delete(_ context.Context, id string) error {
	if err := r.db.delete(botKey(id)); err != nil {
		return fmt.Errorf("delete bot %s: %w", id, err)
	}
	return nil
}
