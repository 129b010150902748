// Package crm is the HTTP client for the CRM collaborator: vendor and booking
// listings, booking and lead creation, and bot-defined action templates.
// Calls use short fixed timeouts and surface failures as ordinary errors the
// tool layer converts into structured error payloads; a flaky CRM must never
// crash a turn.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Vendor is a schedulable resource (typically a salesperson) with its own
// booking calendar. Treated as immutable for one availability computation.
type Vendor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Booking is one committed calendar entry for a vendor.
type Booking struct {
	ID            string    `json:"id,omitempty"`
	VendorID      string    `json:"vendor_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Channel       string    `json:"channel,omitempty"`
	Note          string    `json:"note,omitempty"`
	Link          string    `json:"link,omitempty"`
}

// Lead is the payload for CRM lead creation.
type Lead struct {
	Source  string `json:"procedencia"`
	Name    string `json:"nombre"`
	Email   string `json:"correo"`
	Phone   string `json:"telefono"`
	Message string `json:"mensaje"`
	Vendor  string `json:"vendedor_username,omitempty"`
}

// LeadResult is the CRM's answer to lead creation.
type LeadResult struct {
	ID int64 `json:"id"`
}

// Client talks to the CRM REST API with per-call bearer tokens.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given base URL. timeout <= 0 uses the
// default 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ListVendors enumerates the schedulable resources.
func (c *Client) ListVendors(ctx context.Context, token string) ([]Vendor, error) {
	var vendors []Vendor
	if err := c.do(ctx, http.MethodGet, "/api/vendors/", nil, nil, token, &vendors); err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return vendors, nil
}

// ListBookings returns the vendor's current calendar entries.
func (c *Client) ListBookings(ctx context.Context, vendorID, token string) ([]Booking, error) {
	var bookings []Booking
	path := fmt.Sprintf("/api/vendors/%s/bookings/", url.PathEscape(vendorID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, token, &bookings); err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", vendorID, err)
	}
	return bookings, nil
}

// CreateBooking commits a booking and returns it with the CRM-assigned id.
func (c *Client) CreateBooking(ctx context.Context, b Booking, token string) (*Booking, error) {
	var created Booking
	if err := c.do(ctx, http.MethodPost, "/api/bookings/", nil, b, token, &created); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &created, nil
}

// CreateLead registers a lead and returns its id.
func (c *Client) CreateLead(ctx context.Context, lead Lead, token string) (*LeadResult, error) {
	var result LeadResult
	if err := c.do(ctx, http.MethodPost, "/api/leads/", nil, lead, token, &result); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return &result, nil
}

// DoAction executes a rendered bot action template and returns the raw JSON
// response (or {"raw": body} when the CRM answers with non-JSON content).
func (c *Client) DoAction(ctx context.Context, a RenderedAction, token string) (map[string]interface{}, error) {
	var body interface{}
	if a.Body != nil {
		body = a.Body
	}
	out := map[string]interface{}{}
	if err := c.do(ctx, a.Method, a.Path, a.Query, body, token, &out); err != nil {
		return nil, fmt.Errorf("action %s %s: %w", a.Method, a.Path, err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, token string, dst interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("crm returned %d: %s", resp.StatusCode, truncate(string(payload), 300))
	}

	if dst == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		// Non-JSON success bodies degrade to a raw wrapper when the caller
		// accepts a map; anything else is a real decode failure.
		if m, ok := dst.(*map[string]interface{}); ok {
			*m = map[string]interface{}{"raw": string(payload)}
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
