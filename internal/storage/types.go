package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryEntry records one report-send outcome.
// Keep it compact and schema-stable.
type DeliveryEntry struct {
	At          time.Time
	Destination string
	Transport   string
	Attempts    int
	Simulated   bool
	GraphLinks  int
	OK          bool
	Error       string
	TookMS      int64
}
