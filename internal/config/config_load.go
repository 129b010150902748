package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		CRM: CRMConfig{
			TimeoutSeconds: 15,
		},
		Store: StoreConfig{
			Dir:                "./data",
			SessionTTLHours:    24,
			SessionMaxMessages: 20,
			ThreadTTLDays:      7,
			LockTTLSeconds:     300,
			LeadTTLDays:        30,
		},
		Runs: RunsConfig{
			PollIntervalMS:     1000,
			MaxPollIterations:  60,
			BusyProbeTimeoutMS: 5000,
		},
		Schedule: ScheduleConfig{
			SlotMinutes: 60,
			Timezone:    "America/Santiago",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "turnero",
			SampleRatio: 1.0,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error; defaults plus env are enough to run.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envStr("TURNERO_OPENAI_API_KEY", &c.OpenAI.APIKey)
	envStr("TURNERO_TWILIO_ACCOUNT_SID", &c.Twilio.AccountSID)
	envStr("TURNERO_TWILIO_AUTH_TOKEN", &c.Twilio.AuthToken)
	envStr("TURNERO_TWILIO_WHATSAPP_FROM", &c.Twilio.From)
	envStr("TURNERO_CRM_BASE_URL", &c.CRM.BaseURL)
	envStr("TURNERO_CRM_TOKEN", &c.CRM.Token)
	envStr("TURNERO_DATABASE_DSN", &c.Database.DSN)
	envStr("TURNERO_ADMIN_TOKEN", &c.Gateway.AdminToken)
	envStr("TURNERO_HOST", &c.Gateway.Host)
	envInt("TURNERO_PORT", &c.Gateway.Port)
	envStr("TURNERO_STORE_DIR", &c.Store.Dir)
	envStr("TURNERO_TIMEZONE", &c.Schedule.Timezone)
	envStr("TURNERO_OTLP_ENDPOINT", &c.Telemetry.Endpoint)
	if c.Telemetry.Endpoint != "" {
		c.Telemetry.Enabled = true
	}
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
