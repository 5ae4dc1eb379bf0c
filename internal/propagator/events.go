package propagator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/telhawk-systems/event-relay/internal/validator"
)

// ErrNoEvents is returned when an events file holds an empty array.
var ErrNoEvents = errors.New("events file contains no events")

// LoadEvents reads the JSON array at path. Each element is kept verbatim
// and sent as the request body unchanged.
func LoadEvents(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var events []json.RawMessage
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events file %s: %w", path, err)
	}
	return events, nil
}

// WriteEvents writes events to path as an indented JSON array.
func WriteEvents(path string, events any) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write events file: %w", err)
	}
	return nil
}

// Invalid describes one pool entry the consumer would reject.
type Invalid struct {
	Index  int
	Reason string
}

// ValidateEvents runs every pool entry through the consumer's validator.
// Each entry is checked on its own, so arrays are accepted as batches.
func ValidateEvents(events []json.RawMessage) []Invalid {
	var invalid []Invalid
	for i, event := range events {
		raw, err := validator.Decode(bytes.NewReader(event))
		if err == nil {
			_, err = validator.Validate(raw)
		}
		if err != nil {
			invalid = append(invalid, Invalid{Index: i, Reason: err.Error()})
		}
	}
	return invalid
}
