package scheduling

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/nextlevelbuilder/turnero/internal/crm"
)

type fakeSource struct {
	bookings map[string][]crm.Booking
	listErr  error
	created  []crm.Booking
}

func (f *fakeSource) ListBookings(_ context.Context, vendorID, _ string) ([]crm.Booking, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.bookings[vendorID], nil
}

func (f *fakeSource) CreateBooking(_ context.Context, b crm.Booking, _ string) (*crm.Booking, error) {
	b.ID = fmt.Sprintf("b%d", len(f.created)+1)
	f.created = append(f.created, b)
	f.bookings[b.VendorID] = append(f.bookings[b.VendorID], b)
	return &b, nil
}

func at(hour, min int) time.Time {
	return time.Date(2025, 11, 7, hour, min, 0, 0, time.UTC)
}

func TestComputeAvailability(t *testing.T) {
	src := &fakeSource{bookings: map[string][]crm.Booking{
		"v1": {
			{VendorID: "v1", Start: at(10, 0), End: at(11, 0)},
			{VendorID: "v1", Start: at(14, 0), End: at(15, 0)},
		},
		"v2": {},
	}}
	eng := NewEngine(src, 60)

	got, err := eng.ComputeAvailability(context.Background(),
		[]crm.Vendor{{ID: "v1", Name: "Ana"}, {ID: "v2", Name: "Beto"}},
		at(9, 0), at(18, 0), 60, "tok")
	if err != nil {
		t.Fatalf("compute availability: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vendor results, got %d", len(got))
	}

	// v1 gaps: [9,10) [11,14) [15,18) at 60m stride: 9, 11, 12, 13, 15, 16, 17.
	v1 := got[0]
	if v1.Total != 7 {
		t.Errorf("v1 total = %d, want 7", v1.Total)
	}
	if len(v1.Proposals) != maxProposalsPerVendor {
		t.Errorf("v1 proposals = %d, want %d", len(v1.Proposals), maxProposalsPerVendor)
	}
	wantFirst := []time.Time{at(9, 0), at(11, 0), at(12, 0), at(13, 0), at(15, 0)}
	if !reflect.DeepEqual(v1.Proposals, wantFirst) {
		t.Errorf("v1 proposals = %v, want %v", v1.Proposals, wantFirst)
	}

	// v2 is fully open: 9..17 inclusive is 9 slots, capped to 5 proposals.
	v2 := got[1]
	if v2.Total != 9 || len(v2.Proposals) != maxProposalsPerVendor {
		t.Errorf("v2 total = %d proposals = %d", v2.Total, len(v2.Proposals))
	}
	if !v2.Proposals[0].Equal(at(9, 0)) {
		t.Errorf("v2 first proposal = %v", v2.Proposals[0])
	}
}

func TestComputeAvailabilityDeterministic(t *testing.T) {
	src := &fakeSource{bookings: map[string][]crm.Booking{
		"v1": {{VendorID: "v1", Start: at(12, 0), End: at(13, 30)}},
	}}
	eng := NewEngine(src, 30)
	vendors := []crm.Vendor{{ID: "v1", Name: "Ana"}}

	first, err := eng.ComputeAvailability(context.Background(), vendors, at(9, 0), at(18, 0), 0, "")
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	second, err := eng.ComputeAvailability(context.Background(), vendors, at(9, 0), at(18, 0), 0, "")
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ across identical runs:\n%v\n%v", first, second)
	}
}

func TestComputeAvailabilityBadRange(t *testing.T) {
	eng := NewEngine(&fakeSource{bookings: map[string][]crm.Booking{}}, 60)
	if _, err := eng.ComputeAvailability(context.Background(), nil, at(10, 0), at(10, 0), 60, ""); err == nil {
		t.Fatal("expected error for empty range")
	}
}

func TestComputeAvailabilitySourceError(t *testing.T) {
	eng := NewEngine(&fakeSource{listErr: errors.New("crm down")}, 60)
	_, err := eng.ComputeAvailability(context.Background(),
		[]crm.Vendor{{ID: "v1"}}, at(9, 0), at(18, 0), 60, "")
	if err == nil {
		t.Fatal("expected source error to surface")
	}
}

func TestBookSlotOverlapRejected(t *testing.T) {
	src := &fakeSource{bookings: map[string][]crm.Booking{
		"v1": {{VendorID: "v1", Start: at(10, 0), End: at(11, 0)}},
	}}
	eng := NewEngine(src, 60)

	// Overlapping window rejected before any write.
	_, _, err := eng.BookSlot(context.Background(), BookingRequest{
		VendorID: "v1", Start: at(10, 30), End: at(11, 30),
	}, "tok")
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if len(src.created) != 0 {
		t.Errorf("no booking should have been created, got %d", len(src.created))
	}

	// Adjacent window (starts exactly at the existing end) is fine.
	created, confirmation, err := eng.BookSlot(context.Background(), BookingRequest{
		VendorID: "v1", Start: at(11, 0), End: at(12, 0), CustomerName: "Ana",
	}, "tok")
	if err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
	if created.ID == "" {
		t.Error("created booking should carry an id")
	}
	if confirmation == "" {
		t.Error("confirmation text should not be empty")
	}
}

func TestBookSlotDefaultsEnd(t *testing.T) {
	src := &fakeSource{bookings: map[string][]crm.Booking{}}
	eng := NewEngine(src, 60)

	created, _, err := eng.BookSlot(context.Background(), BookingRequest{
		VendorID: "v1", Start: at(10, 0),
	}, "")
	if err != nil {
		t.Fatalf("book slot: %v", err)
	}
	if !created.End.Equal(at(11, 0)) {
		t.Errorf("end = %v, want %v", created.End, at(11, 0))
	}
}

func TestBookSlotRejectsInvertedWindow(t *testing.T) {
	eng := NewEngine(&fakeSource{bookings: map[string][]crm.Booking{}}, 60)
	_, _, err := eng.BookSlot(context.Background(), BookingRequest{
		VendorID: "v1", Start: at(11, 0), End: at(10, 0),
	}, "")
	if err == nil {
		t.Fatal("expected error for end before start")
	}
	if errors.Is(err, ErrSlotTaken) {
		t.Error("inverted window is a validation error, not a slot conflict")
	}
}

func TestBookSlotRequiredFields(t *testing.T) {
	eng := NewEngine(&fakeSource{bookings: map[string][]crm.Booking{}}, 60)
	if _, _, err := eng.BookSlot(context.Background(), BookingRequest{Start: at(10, 0)}, ""); err == nil {
		t.Error("expected error for missing vendor id")
	}
	if _, _, err := eng.BookSlot(context.Background(), BookingRequest{VendorID: "v1"}, ""); err == nil {
		t.Error("expected error for missing start")
	}
}
