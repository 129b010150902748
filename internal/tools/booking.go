package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/scheduling"
)

// BookingTool commits an appointment through the scheduling engine.
type BookingTool struct {
	engine       *scheduling.Engine
	loc          *time.Location
	defaultToken string
}

func NewBookingTool(engine *scheduling.Engine, loc *time.Location, defaultToken string) *BookingTool {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingTool{engine: engine, loc: loc, defaultToken: defaultToken}
}

func (t *BookingTool) Name() string { return "book_slot" }

func (t *BookingTool) Description() string {
	return "Book an appointment slot with a vendor for the customer."
}

func (t *BookingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"vendor_id": map[string]interface{}{
				"type": "string",
			},
			"start": map[string]interface{}{
				"type":        "string",
				"description": "Slot start, YYYY-MM-DD HH:MM or RFC3339.",
			},
			"end": map[string]interface{}{
				"type":        "string",
				"description": "Slot end. Defaults to start plus the slot length.",
			},
			"customer_name": map[string]interface{}{
				"type": "string",
			},
			"customer_email": map[string]interface{}{
				"type": "string",
			},
			"note": map[string]interface{}{
				"type": "string",
			},
		},
		"required": []string{"vendor_id", "start", "customer_name"},
	}
}

func (t *BookingTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	vendorID, _ := args["vendor_id"].(string)
	if vendorID == "" {
		return JSONError("vendor_id is required")
	}
	rawStart, _ := args["start"].(string)
	start, err := parseLocalTime(rawStart, t.loc)
	if err != nil {
		return JSONError(fmt.Sprintf("invalid start %q", rawStart))
	}
	var end time.Time
	if rawEnd, ok := args["end"].(string); ok && rawEnd != "" {
		end, err = parseLocalTime(rawEnd, t.loc)
		if err != nil {
			return JSONError(fmt.Sprintf("invalid end %q", rawEnd))
		}
	}

	name, _ := args["customer_name"].(string)
	email, _ := args["customer_email"].(string)
	note, _ := args["note"].(string)

	booking, confirmation, err := t.engine.BookSlot(ctx, scheduling.BookingRequest{
		VendorID:      vendorID,
		Start:         start,
		End:           end,
		CustomerName:  name,
		CustomerPhone: UserPhoneFromCtx(ctx),
		CustomerEmail: email,
		Channel:       "whatsapp",
		Note:          note,
	}, crmToken(ctx, t.defaultToken))
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotTaken) {
			return JSONResult(map[string]interface{}{
				"success": false,
				"error":   "slot_taken",
				"message": "Ese horario acaba de ser tomado. Ofrece otro horario disponible.",
			})
		}
		return JSONError("could not create booking").WithError(err)
	}

	return JSONResult(map[string]interface{}{
		"success":      true,
		"booking_id":   booking.ID,
		"confirmation": confirmation,
	})
}

// parseLocalTime accepts RFC3339 or a local "YYYY-MM-DD HH:MM" stamp.
func parseLocalTime(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", raw, loc)
}
