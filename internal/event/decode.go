package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a single JSON-encoded event payload from r and validates it.
func Decode(r io.Reader) (*Event, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("decoding event payload: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	return &ev, nil
}

// DecodeFile reads an event payload from the file at path.
func DecodeFile(path string) (*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event payload: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
