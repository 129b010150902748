package bots

import "context"

// TokenOverrides fills the CRM token on bots that do not carry their own,
// from a config table keyed by assistant id. Deployments that rotate CRM
// credentials per assistant keep them in config instead of the registry.
type TokenOverrides struct {
	inner     Repository
	overrides map[string]string
}

// WithTokenOverrides wraps repo; a nil or empty table returns repo unchanged.
func WithTokenOverrides(repo Repository, overrides map[string]string) Repository {
	if len(overrides) == 0 {
		return repo
	}
	return &TokenOverrides{inner: repo, overrides: overrides}
}

func (t *TokenOverrides) Get(ctx context.Context, id string) (*Bot, error) {
	bot, err := t.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.apply(bot), nil
}

func (t *TokenOverrides) FindByNumber(ctx context.Context, number string) (*Bot, error) {
	bot, err := t.inner.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return t.apply(bot), nil
}

func (t *TokenOverrides) List(ctx context.Context) ([]*Bot, error) {
	all, err := t.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	for i, bot := range all {
		all[i] = t.apply(bot)
	}
	return all, nil
}

func (t *TokenOverrides) Put(ctx context.Context, bot *Bot) error {
	return t.inner.Put(ctx, bot)
}

func (t *TokenOverrides) Delete(ctx context.Context, id string) error {
	return t.inner.Delete(ctx, id)
}

func (t *TokenOverrides) apply(bot *Bot) *Bot {
	if bot.CRMToken != "" {
		return bot
	}
	tok, ok := t.overrides[bot.AssistantID]
	if !ok {
		return bot
	}
	clone := *bot
	clone.CRMToken = tok
	return &clone
}
