package config

import (
	"fmt"
	"strings"
)

// Transport identifies the delivery mechanism for outgoing reports.
//
// The set is closed: historical variants of the original tool (twilio-only,
// twilio+browser, twilio+webhook) all collapse into this enum; the webhook
// role is covered by the localrun slot (an external command owns delivery).
type Transport string

const (
	TransportTwilio     Transport = "twilio"
	TransportBrowser    Transport = "browser"
	TransportLocalRun   Transport = "localrun"
	TransportSimulation Transport = "simulation"
)

// ParseTransport normalizes a transport identifier.
// An empty value defaults to simulation, matching the original tool.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simulation", "simulate", "noop":
		return TransportSimulation, nil
	case "twilio":
		return TransportTwilio, nil
	case "browser", "whatsapp-web":
		return TransportBrowser, nil
	case "localrun", "local", "script":
		return TransportLocalRun, nil
	default:
		return "", fmt.Errorf("unknown transport %q", s)
	}
}

// Config is the full runtime configuration.
//
// Values are resolved in three layers: built-in defaults, then an optional
// JSON/YAML config file, then environment variables (highest precedence).
type Config struct {
	Delivery  DeliveryConfig  `json:"delivery"`
	Twilio    TwilioConfig    `json:"twilio,omitempty"`
	Imgbb     ImgbbConfig     `json:"imgbb,omitempty"`
	Browser   BrowserConfig   `json:"browser,omitempty"`
	LocalRun  LocalRunConfig  `json:"localrun,omitempty"`
	Renderer  RendererConfig  `json:"renderer,omitempty"`
	Outputs   OutputsConfig   `json:"outputs,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
}

// DeliveryConfig is the orchestrator's immutable snapshot.
type DeliveryConfig struct {
	// Destination is the default WhatsApp address (e.g. "+51987654321").
	// Empty means unset; sendFullReport then requires an explicit destination.
	Destination string    `json:"destination"`
	Transport   Transport `json:"transport"`
	// Simulate forces the simulation path regardless of Transport.
	Simulate bool `json:"simulate"`
	// MaxRetries is the number of attempts per send (>= 1).
	MaxRetries int `json:"max_retries"`
	// RetryWaitSeconds is the blocking delay between failed attempts.
	RetryWaitSeconds int `json:"retry_wait_seconds"`
}

type TwilioConfig struct {
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	// From is the sending WhatsApp address, without the "whatsapp:" scheme.
	From string `json:"from"`
	// SettleDelaySeconds is the pause before re-fetching message status.
	SettleDelaySeconds int `json:"settle_delay_seconds,omitempty"`
	// RatePerSec caps outgoing API calls client-side.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

func (c TwilioConfig) Complete() bool {
	return strings.TrimSpace(c.AccountSID) != "" &&
		strings.TrimSpace(c.AuthToken) != "" &&
		strings.TrimSpace(c.From) != ""
}

type ImgbbConfig struct {
	APIKey string `json:"api_key"`
	// MaxImages bounds how many graphs are uploaded per report.
	MaxImages int `json:"max_images,omitempty"`
	// NamePrefix, when set, derives per-upload names (prefix_base_ts_idx).
	NamePrefix string `json:"name_prefix,omitempty"`
}

type BrowserConfig struct {
	// Bin is the browser binary path; empty lets the launcher pick one.
	Bin      string `json:"bin,omitempty"`
	Headless bool   `json:"headless,omitempty"`
	// QRTimeoutSeconds bounds the wait for the manual QR-code scan.
	QRTimeoutSeconds int `json:"qr_timeout_seconds,omitempty"`
}

type LocalRunConfig struct {
	// Command is the script invoked for delivery; it receives the
	// destination and message via argv and stdin (see transport/localrun).
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	// TimeoutSeconds bounds a single invocation. 0 means no limit.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

type RendererConfig struct {
	// Command renders the chart set into the graphs directory.
	// Empty disables in-run rendering (graphs are expected on disk).
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	// TimeoutSeconds bounds one render run. 0 means no limit.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	// ResultsPath is the aggregate results JSON consumed by the renderer
	// and the message composer. Daemon mode requires it; one-shot runs
	// usually pass it on the command line instead.
	ResultsPath string `json:"results_path,omitempty"`
}

type OutputsConfig struct {
	// Dir is the root for durable artifacts. Graphs live in Dir/graphs,
	// simulation records in Dir/simulation_log.txt and
	// Dir/simulation_message.txt.
	Dir string `json:"dir,omitempty"`
}

func (c OutputsConfig) Root() string {
	if strings.TrimSpace(c.Dir) == "" {
		return "outputs"
	}
	return c.Dir
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional delivery-history layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./reportbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls periodic report runs in daemon mode.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression (5-field, or 6-field with seconds).
	Spec     string `json:"spec,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Normalize fills defaults and clamps out-of-range values in place.
func (c *Config) Normalize() {
	if c.Delivery.Transport == "" {
		c.Delivery.Transport = TransportSimulation
	}
	if c.Delivery.MaxRetries < 1 {
		c.Delivery.MaxRetries = 3
	}
	if c.Delivery.RetryWaitSeconds < 0 {
		c.Delivery.RetryWaitSeconds = 5
	}
	if c.Twilio.SettleDelaySeconds <= 0 {
		c.Twilio.SettleDelaySeconds = 2
	}
	if c.Twilio.RatePerSec <= 0 {
		c.Twilio.RatePerSec = 1
	}
	if c.Imgbb.MaxImages <= 0 {
		c.Imgbb.MaxImages = 6
	}
	if c.Browser.QRTimeoutSeconds <= 0 {
		c.Browser.QRTimeoutSeconds = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configurations that cannot possibly deliver.
func (c *Config) Validate() error {
	if _, err := ParseTransport(string(c.Delivery.Transport)); err != nil {
		return err
	}
	if c.Delivery.Transport == TransportTwilio && !c.Delivery.Simulate && !c.Twilio.Complete() {
		return fmt.Errorf("transport %q requires twilio account_sid, auth_token and from", c.Delivery.Transport)
	}
	if c.Delivery.Transport == TransportLocalRun && !c.Delivery.Simulate && strings.TrimSpace(c.LocalRun.Command) == "" {
		return fmt.Errorf("transport %q requires localrun.command", c.Delivery.Transport)
	}
	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.Spec) == "" {
		return fmt.Errorf("scheduler.enabled requires scheduler.spec")
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Delivery: DeliveryConfig{
			Transport:        TransportSimulation,
			MaxRetries:       3,
			RetryWaitSeconds: 5,
		},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
	cfg.Normalize()
	return cfg
}
