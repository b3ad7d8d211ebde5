package report

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads an aggregate results bundle from a JSON file.
// Unknown fields are tolerated; the upstream tool may carry extras.
func LoadFile(path string) (*Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return &r, nil
}
