package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"1s", time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"-1s", 0, true},
		{"five", 0, true},
	}
	for _, c := range cases {
		got, err := ParseDurationField("storage.busy_timeout", c.raw)
		if c.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", c.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", c.raw, err)
		}
		if got != c.want {
			t.Fatalf("%q: got %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("k", "", 2*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("blank: got %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("k", "3s", 2*time.Second); err != nil || d != 3*time.Second {
		t.Fatalf("set: got %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("k", "nope", 2*time.Second); err == nil {
		t.Fatalf("expected error for malformed value")
	}
}
