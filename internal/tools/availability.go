package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/crm"
	"github.com/nextlevelbuilder/turnero/internal/scheduling"
)

const (
	defaultOpenHour  = 9
	defaultCloseHour = 18
)

// AvailabilityTool computes free appointment slots for a date, per vendor.
type AvailabilityTool struct {
	crm          *crm.Client
	engine       *scheduling.Engine
	loc          *time.Location
	defaultToken string
}

func NewAvailabilityTool(client *crm.Client, engine *scheduling.Engine, loc *time.Location, defaultToken string) *AvailabilityTool {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityTool{crm: client, engine: engine, loc: loc, defaultToken: defaultToken}
}

func (t *AvailabilityTool) Name() string { return "check_availability" }

func (t *AvailabilityTool) Description() string {
	return "Get free appointment slots for a date, optionally for one vendor."
}

func (t *AvailabilityTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"date": map[string]interface{}{
				"type":        "string",
				"description": "Date in YYYY-MM-DD format. Defaults to today.",
			},
			"vendor_id": map[string]interface{}{
				"type":        "string",
				"description": "Restrict to a single vendor.",
			},
			"slot_minutes": map[string]interface{}{
				"type":        "integer",
				"description": "Slot length in minutes. Defaults to 60.",
			},
		},
	}
}

func (t *AvailabilityTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	day := time.Now().In(t.loc)
	if raw, ok := args["date"].(string); ok && raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, t.loc)
		if err != nil {
			return JSONError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
		}
		day = parsed
	}
	rangeStart := time.Date(day.Year(), day.Month(), day.Day(), defaultOpenHour, 0, 0, 0, t.loc)
	rangeEnd := time.Date(day.Year(), day.Month(), day.Day(), defaultCloseHour, 0, 0, 0, t.loc)

	slotMinutes := 0
	if raw, ok := args["slot_minutes"].(float64); ok {
		slotMinutes = int(raw)
	}

	token := crmToken(ctx, t.defaultToken)
	vendors, err := t.crm.ListVendors(ctx, token)
	if err != nil {
		return JSONError("could not list vendors").WithError(err)
	}
	if vendorID, ok := args["vendor_id"].(string); ok && vendorID != "" {
		vendors = filterVendor(vendors, vendorID)
		if len(vendors) == 0 {
			return JSONError(fmt.Sprintf("unknown vendor %q", vendorID))
		}
	}

	availability, err := t.engine.ComputeAvailability(ctx, vendors, rangeStart, rangeEnd, slotMinutes, token)
	if err != nil {
		return JSONError("could not compute availability").WithError(err)
	}
	return JSONResult(map[string]interface{}{
		"date":         rangeStart.Format("2006-01-02"),
		"availability": availability,
	})
}

func filterVendor(vendors []crm.Vendor, id string) []crm.Vendor {
	for _, v := range vendors {
		if v.ID == id {
			return []crm.Vendor{v}
		}
	}
	return nil
}
