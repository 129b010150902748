// Package scheduling computes free-slot proposals from vendor calendars and
// performs the race-checked booking commit. The interval math lives in
// internal/interval; this package owns the CRM round-trips and the policy
// knobs (slot length, proposal cap).
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/crm"
	"github.com/nextlevelbuilder/turnero/internal/interval"
)

// ErrSlotTaken marks the double-booking race outcome: the requested window
// overlapped an existing booking at commit time. Distinguishable from generic
// failures so the tool layer can answer "slot no longer available".
var ErrSlotTaken = errors.New("slot no longer available")

const maxProposalsPerVendor = 5

// BookingSource is the slice of the CRM gateway the engine consumes.
// *crm.Client satisfies it; tests use an in-memory fake.
type BookingSource interface {
	ListBookings(ctx context.Context, vendorID, token string) ([]crm.Booking, error)
	CreateBooking(ctx context.Context, b crm.Booking, token string) (*crm.Booking, error)
}

// Engine holds the booking source and default slot length.
type Engine struct {
	source      BookingSource
	slotMinutes int
}

// NewEngine creates an engine. slotMinutes <= 0 defaults to 60.
func NewEngine(source BookingSource, slotMinutes int) *Engine {
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	return &Engine{source: source, slotMinutes: slotMinutes}
}

// VendorAvailability is the per-vendor result of ComputeAvailability:
// at most maxProposalsPerVendor concrete start times plus the total count
// found, so the response stays small without hiding availability signal.
type VendorAvailability struct {
	VendorID   string      `json:"vendor_id"`
	VendorName string      `json:"vendor_name"`
	Proposals  []time.Time `json:"proposals"`
	Total      int         `json:"total"`
}

// ComputeAvailability produces free-slot proposals for each vendor within
// [rangeStart, rangeEnd). Deterministic given identical booking data.
func (e *Engine) ComputeAvailability(ctx context.Context, vendors []crm.Vendor, rangeStart, rangeEnd time.Time, slotMinutes int, token string) ([]VendorAvailability, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, fmt.Errorf("invalid range: end %v not after start %v", rangeEnd, rangeStart)
	}
	if slotMinutes <= 0 {
		slotMinutes = e.slotMinutes
	}
	stride := time.Duration(slotMinutes) * time.Minute

	results := make([]VendorAvailability, 0, len(vendors))
	for _, v := range vendors {
		bookings, err := e.source.ListBookings(ctx, v.ID, token)
		if err != nil {
			return nil, fmt.Errorf("availability for %s: %w", v.ID, err)
		}

		busy := make([]interval.Interval, 0, len(bookings))
		for _, b := range bookings {
			clipped := interval.Clip(interval.Interval{Start: b.Start, End: b.End}, rangeStart, rangeEnd)
			if !clipped.IsZero() {
				busy = append(busy, clipped)
			}
		}

		var all []time.Time
		for _, gap := range interval.Gaps(interval.Merge(busy), rangeStart, rangeEnd) {
			all = append(all, interval.Slots(gap, stride)...)
		}

		proposals := all
		if len(proposals) > maxProposalsPerVendor {
			proposals = proposals[:maxProposalsPerVendor]
		}
		results = append(results, VendorAvailability{
			VendorID:   v.ID,
			VendorName: v.Name,
			Proposals:  proposals,
			Total:      len(all),
		})
	}
	return results, nil
}

// BookingRequest carries the commit parameters for BookSlot.
type BookingRequest struct {
	VendorID      string
	Start         time.Time
	End           time.Time // zero value derives Start + slot length
	SlotMinutes   int       // 0 uses the engine default
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Channel       string
	Note          string
}

// BookSlot commits a booking after a last-moment overlap re-check. The check
// is read-then-write, not transactional: it closes the common double-booking
// window but concurrent writers hitting the same vendor can still race (see
// DESIGN.md). Returns the created booking and a human confirmation string.
func (e *Engine) BookSlot(ctx context.Context, req BookingRequest, token string) (*crm.Booking, string, error) {
	if req.VendorID == "" {
		return nil, "", fmt.Errorf("vendor id is required")
	}
	if req.Start.IsZero() {
		return nil, "", fmt.Errorf("start time is required")
	}

	end := req.End
	if end.IsZero() {
		minutes := req.SlotMinutes
		if minutes <= 0 {
			minutes = e.slotMinutes
		}
		end = req.Start.Add(time.Duration(minutes) * time.Minute)
	}
	if !end.After(req.Start) {
		return nil, "", fmt.Errorf("end %v must be after start %v", end, req.Start)
	}

	// Last-moment re-validation against the vendor's current calendar.
	existing, err := e.source.ListBookings(ctx, req.VendorID, token)
	if err != nil {
		return nil, "", fmt.Errorf("re-check bookings: %w", err)
	}
	requested := interval.Interval{Start: req.Start, End: end}
	for _, b := range existing {
		if requested.Overlaps(interval.Interval{Start: b.Start, End: b.End}) {
			slog.Info("booking rejected on overlap re-check",
				"vendor", req.VendorID, "start", req.Start, "end", end)
			return nil, "", ErrSlotTaken
		}
	}

	created, err := e.source.CreateBooking(ctx, crm.Booking{
		VendorID:      req.VendorID,
		Start:         req.Start,
		End:           end,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Channel:       req.Channel,
		Note:          req.Note,
	}, token)
	if err != nil {
		return nil, "", fmt.Errorf("create booking: %w", err)
	}

	confirmation := fmt.Sprintf("Reserva confirmada para %s de %s a %s.",
		req.Start.Format("Monday 02-01-2006"),
		req.Start.Format("15:04"),
		end.Format("15:04"))
	if created.Link != "" {
		confirmation += " Detalle: " + created.Link
	}
	return created, confirmation, nil
}
