// Package messaging sends outbound WhatsApp messages through Twilio's REST
// API. Used for the branch-notification flow where an extraction tool pushes
// a summary to a human sales channel.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.twilio.com"
	defaultTimeout = 15 * time.Second
)

// TwilioClient posts to the Twilio Messages endpoint with account-SID basic
// auth. A zero-value client (no credentials) reports unavailable instead of
// failing requests one by one.
type TwilioClient struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	http       *http.Client
}

// NewTwilioClient builds a client. from is the default WhatsApp sender,
// overridable per message.
func NewTwilioClient(accountSID, authToken, from string) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		apiBase:    defaultAPIBase,
		http:       &http.Client{Timeout: defaultTimeout},
	}
}

// WithAPIBase points the client at a different endpoint. Tests use this.
func (c *TwilioClient) WithAPIBase(base string) *TwilioClient {
	c.apiBase = strings.TrimRight(base, "/")
	return c
}

// Available reports whether credentials are configured.
func (c *TwilioClient) Available() bool {
	return c != nil && c.accountSID != "" && c.authToken != ""
}

// SendWhatsApp delivers a freeform message. from falls back to the client
// default; both numbers get the whatsapp: prefix if missing. Returns the
// message SID.
func (c *TwilioClient) SendWhatsApp(ctx context.Context, to, body, from string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("twilio client is not configured")
	}
	if from == "" {
		from = c.from
	}
	if from == "" {
		return "", fmt.Errorf("whatsapp sender number is required")
	}
	if to == "" {
		return "", fmt.Errorf("whatsapp destination number is required")
	}

	form := url.Values{}
	form.Set("From", whatsappNumber(from))
	form.Set("To", whatsappNumber(to))
	form.Set("Body", body)
	return c.send(ctx, form)
}

// SendTemplate delivers a pre-approved content template, optionally through a
// messaging service. variables are the template's positional substitutions.
func (c *TwilioClient) SendTemplate(ctx context.Context, to, contentSID string, variables map[string]string, messagingServiceSID string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("twilio client is not configured")
	}
	if contentSID == "" {
		return "", fmt.Errorf("content sid is required")
	}

	form := url.Values{}
	form.Set("To", whatsappNumber(to))
	form.Set("ContentSid", contentSID)
	if messagingServiceSID != "" {
		form.Set("MessagingServiceSid", messagingServiceSID)
	} else {
		form.Set("From", whatsappNumber(c.from))
	}
	if len(variables) > 0 {
		raw, err := json.Marshal(variables)
		if err != nil {
			return "", fmt.Errorf("encode content variables: %w", err)
		}
		form.Set("ContentVariables", string(raw))
	}
	return c.send(ctx, form)
}

func (c *TwilioClient) send(ctx context.Context, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio returned %d: %s", resp.StatusCode, truncate(string(payload), 300))
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.SID, nil
}

// whatsappNumber prefixes the channel scheme unless already present.
func whatsappNumber(n string) string {
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
