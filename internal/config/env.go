package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys recognized by ApplyEnv. The destination accepts two alias
// names for compatibility with older deployments; the first non-empty wins.
const (
	EnvDestination      = "WHATSAPP_DESTINY"
	EnvDestinationAlias = "DESTINATION_WHATSAPP"
	EnvMethod           = "WHATSAPP_METHOD"
	EnvSimulate         = "WHATSAPP_SIMULATE"
	EnvMaxRetries       = "WHATSAPP_MAX_RETRIES"
	EnvRetryWait        = "WHATSAPP_RETRY_WAIT_SECONDS"

	EnvTwilioAccountSID = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken  = "TWILIO_AUTH_TOKEN"
	EnvTwilioFrom       = "TWILIO_WHATSAPP_FROM"

	EnvImgbbKey = "IMGBB_API_KEY"

	EnvBrowserBin       = "BROWSER_DRIVER_PATH"
	EnvBrowserQRTimeout = "BROWSER_QR_TIMEOUT_SECONDS"
)

// ApplyEnv overlays environment values onto cfg. Unset or blank variables
// leave the current value alone; malformed numerics/booleans are reported.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.Getenv)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if dest := firstNonEmpty(getenv(EnvDestination), getenv(EnvDestinationAlias)); dest != "" {
		cfg.Delivery.Destination = dest
	}
	if raw := strings.TrimSpace(getenv(EnvMethod)); raw != "" {
		tr, err := ParseTransport(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMethod, err)
		}
		cfg.Delivery.Transport = tr
	}
	if raw := strings.TrimSpace(getenv(EnvSimulate)); raw != "" {
		cfg.Delivery.Simulate = Truthy(raw)
	}
	if err := applyEnvInt(getenv, EnvMaxRetries, &cfg.Delivery.MaxRetries); err != nil {
		return err
	}
	if err := applyEnvInt(getenv, EnvRetryWait, &cfg.Delivery.RetryWaitSeconds); err != nil {
		return err
	}

	if v := strings.TrimSpace(getenv(EnvTwilioAccountSID)); v != "" {
		cfg.Twilio.AccountSID = v
	}
	if v := strings.TrimSpace(getenv(EnvTwilioAuthToken)); v != "" {
		cfg.Twilio.AuthToken = v
	}
	if v := strings.TrimSpace(getenv(EnvTwilioFrom)); v != "" {
		cfg.Twilio.From = v
	}

	if v := strings.TrimSpace(getenv(EnvImgbbKey)); v != "" {
		cfg.Imgbb.APIKey = v
	}

	if v := strings.TrimSpace(getenv(EnvBrowserBin)); v != "" {
		cfg.Browser.Bin = v
	}
	if err := applyEnvInt(getenv, EnvBrowserQRTimeout, &cfg.Browser.QRTimeoutSeconds); err != nil {
		return err
	}
	return nil
}

func applyEnvInt(getenv func(string) string, key string, dst *int) error {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	*dst = n
	return nil
}

// Truthy reports whether s spells a true value: 1/true/yes/y, case-insensitive.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
