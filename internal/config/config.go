// Package config holds the gateway configuration: file-based (JSON5) with
// environment overrides for secrets and deploy-specific values.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Twilio    TwilioConfig    `json:"twilio"`
	CRM       CRMConfig       `json:"crm"`
	Store     StoreConfig     `json:"store"`
	Database  DatabaseConfig  `json:"database"`
	Runs      RunsConfig      `json:"runs"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// GatewayConfig is the HTTP listener.
type GatewayConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	AdminToken string `json:"admin_token"`
}

// OpenAIConfig configures the assistants upstream. An empty APIKey runs the
// gateway in deterministic fallback mode.
type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// TwilioConfig configures outbound WhatsApp delivery.
type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	From       string `json:"whatsapp_from"`
}

// CRMConfig points at the CRM collaborator. TokenOverrides maps assistant id
// to a dedicated bearer token.
type CRMConfig struct {
	BaseURL        string            `json:"base_url"`
	Token          string            `json:"token"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	TokenOverrides map[string]string `json:"token_overrides"`
}

// StoreConfig configures the embedded KV store and its TTLs.
type StoreConfig struct {
	Dir                string `json:"dir"`
	InMemory           bool   `json:"in_memory"`
	SessionTTLHours    int    `json:"session_ttl_hours"`
	SessionMaxMessages int    `json:"session_max_messages"`
	ThreadTTLDays      int    `json:"thread_ttl_days"`
	LockTTLSeconds     int    `json:"lock_ttl_seconds"`
	LeadTTLDays        int    `json:"lead_ttl_days"`
}

// DatabaseConfig is the optional Postgres bot registry. Empty DSN means the
// embedded registry is authoritative.
type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// RunsConfig bounds the run state machine.
type RunsConfig struct {
	PollIntervalMS     int `json:"poll_interval_ms"`
	MaxPollIterations  int `json:"max_poll_iterations"`
	BusyProbeTimeoutMS int `json:"busy_probe_timeout_ms"`
}

// ScheduleConfig is the appointment policy.
type ScheduleConfig struct {
	SlotMinutes int    `json:"slot_minutes"`
	Timezone    string `json:"timezone"`
}

// TelemetryConfig enables the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool    `json:"enabled"`
	Endpoint    string  `json:"endpoint"`
	ServiceName string  `json:"service_name"`
	SampleRatio float64 `json:"sample_ratio"`
}

// Addr returns the gateway listen address.
func (c *Config) Addr() string {
	host := c.Gateway.Host
	port := c.Gateway.Port
	if port == 0 {
		port = 8080
	}
	return hostPort(host, port)
}

// PollInterval returns the run poll interval.
func (c *Config) PollInterval() time.Duration {
	if c.Runs.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.Runs.PollIntervalMS) * time.Millisecond
}

// BusyProbeTimeout returns the entry-guard probe budget.
func (c *Config) BusyProbeTimeout() time.Duration {
	if c.Runs.BusyProbeTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Runs.BusyProbeTimeoutMS) * time.Millisecond
}
