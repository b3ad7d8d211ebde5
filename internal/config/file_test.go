package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearDeliveryEnv keeps inherited environment from leaking into file-load
// assertions; blank values are ignored by ApplyEnv.
func clearDeliveryEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvDestination, EnvDestinationAlias, EnvMethod, EnvSimulate,
		EnvMaxRetries, EnvRetryWait,
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileKeepsDefaultsForAbsentKeys(t *testing.T) {
	clearDeliveryEnv(t)
	path := writeConfigFile(t, "config.json", `{"delivery":{"destination":"+51911"}}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Delivery.Destination != "+51911" {
		t.Fatalf("destination = %q", cfg.Delivery.Destination)
	}
	if cfg.Delivery.RetryWaitSeconds != 5 {
		t.Fatalf("retry_wait_seconds = %d, want default 5", cfg.Delivery.RetryWaitSeconds)
	}
	if cfg.Delivery.MaxRetries != 3 {
		t.Fatalf("max_retries = %d, want default 3", cfg.Delivery.MaxRetries)
	}
	if !cfg.Logging.Console {
		t.Fatalf("logging.console = false, want default true")
	}
}

func TestLoadFileHonorsExplicitZeroWait(t *testing.T) {
	clearDeliveryEnv(t)
	path := writeConfigFile(t, "config.json",
		`{"delivery":{"destination":"+51911","retry_wait_seconds":0}}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Delivery.RetryWaitSeconds != 0 {
		t.Fatalf("retry_wait_seconds = %d, want explicit 0", cfg.Delivery.RetryWaitSeconds)
	}
}

func TestLoadFileYAMLKeepsDefaults(t *testing.T) {
	clearDeliveryEnv(t)
	path := writeConfigFile(t, "config.yaml", "delivery:\n  destination: \"+51911\"\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Delivery.RetryWaitSeconds != 5 {
		t.Fatalf("retry_wait_seconds = %d, want default 5", cfg.Delivery.RetryWaitSeconds)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	clearDeliveryEnv(t)
	path := writeConfigFile(t, "config.json", `{"deliverx":{}}`)

	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}
