// Package controls loads and validates the compliance control set for an
// analysis run.
package controls

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoControls indicates the controls file parsed to an empty list.
	ErrNoControls = errors.New("controls file must be a non-empty list of control objects")
	// ErrInvalidControl indicates a control entry is missing required fields.
	ErrInvalidControl = errors.New("invalid control entry")
)

// Control is a discrete compliance requirement to be checked against the
// policy corpus. Level is optional (e.g. a CMMC maturity level).
type Control struct {
	ControlID   string `json:"control_id"`
	Description string `json:"description"`
	Level       string `json:"level,omitempty"`
}

// Load reads a JSON array of controls from path and validates it. Controls
// are read-only for the rest of the run.
func Load(path string) ([]Control, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("controls file: %w", err)
	}

	var list []Control
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("invalid JSON in controls file %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, ErrNoControls
	}

	for i, c := range list {
		if c.ControlID == "" {
			return nil, fmt.Errorf("%w: entry %d has no control_id", ErrInvalidControl, i)
		}
		// An empty description is tolerated here: the classifier emits a
		// Not Met verdict for it rather than aborting the whole run.
	}
	return list, nil
}
