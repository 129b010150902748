package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListBookings(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]Booking{
			{VendorID: "v1", Start: time.Date(2025, 11, 7, 10, 0, 0, 0, time.UTC), End: time.Date(2025, 11, 7, 11, 0, 0, 0, time.UTC)},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	bookings, err := c.ListBookings(context.Background(), "v1", "tok123")
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(bookings) != 1 || bookings[0].VendorID != "v1" {
		t.Errorf("unexpected bookings: %+v", bookings)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotPath != "/api/vendors/v1/bookings/" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestCreateLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var lead Lead
		if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
			t.Errorf("decode lead: %v", err)
		}
		if lead.Name != "Ana Silva" || lead.Source != "whatsapp" {
			t.Errorf("unexpected lead payload: %+v", lead)
		}
		json.NewEncoder(w).Encode(LeadResult{ID: 991})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	res, err := c.CreateLead(context.Background(), Lead{
		Source: "whatsapp", Name: "Ana Silva", Email: "ana@example.com", Phone: "+56911",
	}, "tok")
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if res.ID != 991 {
		t.Errorf("lead id = %d, want 991", res.ID)
	}
}

func TestUpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if _, err := c.ListVendors(context.Background(), "bad"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestDoActionNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	out, err := c.DoAction(context.Background(), RenderedAction{Method: "GET", Path: "/ping"}, "")
	if err != nil {
		t.Fatalf("do action: %v", err)
	}
	if out["raw"] != "OK" {
		t.Errorf("expected raw wrapper, got %v", out)
	}
}
