package main

import (
	"encoding/json"
	"fmt"
	"os"

	gojson "github.com/coreos/go-json"
)

// entry is one line of a changeset log: a single field mutation
// applied to the example record before a changeset is captured.
type entry struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// loadLog decodes a changeset log file into entries using the
// standard library codec, which is all the core ever needs.
func loadLog(path string) ([]entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("syncinspect: malformed changeset log: %w", err)
	}
	return entries, nil
}

// echoInOriginalOrder re-marshals the log file through go-json's
// order-preserving node, so a --echo run of the inspector reproduces
// the file's own key order instead of whatever order encoding/json's
// struct tags would otherwise impose. This is the one place the
// order-preserving codec the rest of the example pack reaches for
// earns its keep: nothing downstream of this function touches the
// resulting bytes, they are only printed back to the user.
func echoInOriginalOrder(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var node gojson.Node
	if err := gojson.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("syncinspect: malformed changeset log: %w", err)
	}

	entries, ok := node.Value.([]gojson.Node)
	if !ok {
		return nil, fmt.Errorf("syncinspect: changeset log must be a JSON array")
	}

	out, err := gojson.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("syncinspect: re-encoding changeset log: %w", err)
	}
	return out, nil
}
