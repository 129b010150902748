package tools

import (
	"context"

	"github.com/nextlevelbuilder/turnero/internal/bots"
)

// Tool execution context keys. Per-turn values (the bot handling the turn,
// the customer's phone number) travel through context so tool instances stay
// stateless and safe for concurrent runs.

type toolContextKey string

const (
	ctxBot       toolContextKey = "tool_bot"
	ctxUserPhone toolContextKey = "tool_user_phone"
)

func WithBot(ctx context.Context, bot *bots.Bot) context.Context {
	return context.WithValue(ctx, ctxBot, bot)
}

func BotFromCtx(ctx context.Context) *bots.Bot {
	v, _ := ctx.Value(ctxBot).(*bots.Bot)
	return v
}

func WithUserPhone(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, ctxUserPhone, phone)
}

func UserPhoneFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserPhone).(string)
	return v
}
