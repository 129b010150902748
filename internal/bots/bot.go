// Package bots holds the bot registry: per-number assistant configuration
// that maps an inbound WhatsApp destination to an assistant, its tools, its
// CRM action templates and its Twilio identifiers.
package bots

import (
	"context"
	"errors"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/crm"
)

// ErrNotFound is returned by repositories when no bot matches.
var ErrNotFound = errors.New("bot not found")

// Bot is one configured assistant endpoint.
type Bot struct {
	ID                  string               `json:"id"`
	ClientID            string               `json:"client_id,omitempty"`
	Name                string               `json:"name"`
	PhoneNumber         string               `json:"phone_number,omitempty"`
	MessagingServiceSID string               `json:"messaging_service_sid,omitempty"`
	AssistantID         string               `json:"assistant_id,omitempty"`
	Model               string               `json:"model,omitempty"`
	Instructions        string               `json:"instructions,omitempty"`
	Functions           []string             `json:"functions,omitempty"`
	Actions             []crm.ActionTemplate `json:"actions,omitempty"`
	CRMToken            string               `json:"crm_token,omitempty"`
	Metadata            map[string]string    `json:"metadata,omitempty"`
	Status              string               `json:"status,omitempty"`
	CreatedAt           time.Time            `json:"created_at,omitempty"`
	UpdatedAt           time.Time            `json:"updated_at,omitempty"`
}

// Active reports whether the bot should accept traffic. An empty status is
// treated as active so minimally-configured bots work out of the box.
func (b *Bot) Active() bool {
	return b.Status == "" || b.Status == "active"
}

// ActionByName finds the bot's CRM action template with the given name.
func (b *Bot) ActionByName(name string) (crm.ActionTemplate, bool) {
	for _, a := range b.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return crm.ActionTemplate{}, false
}

// HasFunction reports whether the bot enables a built-in tool by name. An
// empty Functions list enables everything, matching the common single-bot
// deployment where the assistant definition is the only gate.
func (b *Bot) HasFunction(name string) bool {
	if len(b.Functions) == 0 {
		return true
	}
	for _, f := range b.Functions {
		if f == name {
			return true
		}
	}
	return false
}

// Repository is the bot registry contract. FindByNumber resolves the inbound
// To number of a webhook to its bot.
type Repository interface {
	Get(ctx context.Context, id string) (*Bot, error)
	FindByNumber(ctx context.Context, number string) (*Bot, error)
	List(ctx context.Context) ([]*Bot, error)
	Put(ctx context.Context, bot *Bot) error
	Delete(ctx context.Context, id string) error
}
