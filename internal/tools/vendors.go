package tools

import (
	"context"

	"github.com/nextlevelbuilder/turnero/internal/crm"
)

// VendorsTool lists the schedulable vendors so the assistant can offer the
// customer a person to book with.
type VendorsTool struct {
	crm          *crm.Client
	defaultToken string
}

func NewVendorsTool(client *crm.Client, defaultToken string) *VendorsTool {
	return &VendorsTool{crm: client, defaultToken: defaultToken}
}

func (t *VendorsTool) Name() string { return "list_vendors" }

func (t *VendorsTool) Description() string {
	return "List the salespeople available for appointments."
}

func (t *VendorsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *VendorsTool) Execute(ctx context.Context, _ map[string]interface{}) *Result {
	vendors, err := t.crm.ListVendors(ctx, crmToken(ctx, t.defaultToken))
	if err != nil {
		return JSONError("could not list vendors").WithError(err)
	}
	return JSONResult(map[string]interface{}{"vendors": vendors})
}

// crmToken resolves the per-bot CRM token override, falling back to the
// service-wide default.
func crmToken(ctx context.Context, fallback string) string {
	if bot := BotFromCtx(ctx); bot != nil && bot.CRMToken != "" {
		return bot.CRMToken
	}
	return fallback
}
