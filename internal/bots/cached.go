package bots

import (
	"context"
	"errors"
	"log/slog"
)

// CachedRepository layers a local cache over the primary registry. Reads go
// to the primary and refresh the cache; when the primary is unreachable the
// cache answers instead, so a database outage does not take the webhook down
// with it. ErrNotFound from the primary is authoritative and is not masked
// by stale cache entries.
type CachedRepository struct {
	primary Repository
	cache   Repository
}

// NewCachedRepository combines a primary registry with a local cache.
func NewCachedRepository(primary, cache Repository) *CachedRepository {
	return &CachedRepository{primary: primary, cache: cache}
}

func (r *CachedRepository) Get(ctx context.Context, id string) (*Bot, error) {
	bot, err := r.primary.Get(ctx, id)
	if err == nil {
		r.refresh(ctx, bot)
		return bot, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	slog.Warn("bot registry unavailable, serving from cache", "bot", id, "error", err)
	return r.cache.Get(ctx, id)
}

func (r *CachedRepository) FindByNumber(ctx context.Context, number string) (*Bot, error) {
	bot, err := r.primary.FindByNumber(ctx, number)
	if err == nil {
		r.refresh(ctx, bot)
		return bot, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	slog.Warn("bot registry unavailable, serving from cache", "number", number, "error", err)
	return r.cache.FindByNumber(ctx, number)
}

func (r *CachedRepository) List(ctx context.Context) ([]*Bot, error) {
	all, err := r.primary.List(ctx)
	if err == nil {
		for _, bot := range all {
			r.refresh(ctx, bot)
		}
		return all, nil
	}
	slog.Warn("bot registry unavailable, listing from cache", "error", err)
	return r.cache.List(ctx)
}

func (r *CachedRepository) Put(ctx context.Context, bot *Bot) error {
	if err := r.primary.Put(ctx, bot); err != nil {
		return err
	}
	r.refresh(ctx, bot)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	if err := r.primary.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Warn("bot cache delete failed", "bot", id, "error", err)
	}
	return nil
}

// refresh best-effort copies the bot into the cache.
func (r *CachedRepository) refresh(ctx context.Context, bot *Bot) {
	if err := r.cache.Put(ctx, bot); err != nil {
		slog.Warn("bot cache refresh failed", "bot", bot.ID, "error", err)
	}
}
