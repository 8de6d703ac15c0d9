package core

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// TaskSnapshot
// =============================================================================

// TaskSnapshot is an immutable record of one task's restoration-relevant
// state at snapshot time: its name, clamped progress and ordered dependency
// names. It is the sole serializable artifact of the library; reconstructing
// an equivalent chain from a snapshot list is the caller's responsibility.
type TaskSnapshot struct {
	Name         string   `json:"name" yaml:"name"`
	Progress     int      `json:"progress" yaml:"progress"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
}

func newTaskSnapshot(t *Task) TaskSnapshot {
	return TaskSnapshot{
		Name:         t.Name(),
		Progress:     t.Progress(),
		Dependencies: t.Dependencies(),
	}
}

// =============================================================================
// SnapshotSerializer Interface
// =============================================================================

// SnapshotSerializer defines the interface for encoding and decoding
// snapshot lists.
type SnapshotSerializer interface {
	// Serialize converts a snapshot list to bytes
	Serialize(snaps []TaskSnapshot) ([]byte, error)

	// Deserialize converts bytes back to a snapshot list
	Deserialize(data []byte) ([]TaskSnapshot, error)

	// Name returns the serializer name (for debugging/logging)
	Name() string
}

// =============================================================================
// JSONSerializer Implementation
// =============================================================================

// JSONSerializer uses JSON encoding for serialization.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Serialize(snaps []TaskSnapshot) ([]byte, error) {
	data, err := json.Marshal(snaps)
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	return data, nil
}

func (s *JSONSerializer) Deserialize(data []byte) ([]TaskSnapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data is empty")
	}

	var snaps []TaskSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return snaps, nil
}

func (s *JSONSerializer) Name() string {
	return "json"
}

// =============================================================================
// YAMLSerializer Implementation
// =============================================================================

// YAMLSerializer uses YAML encoding for serialization.
type YAMLSerializer struct{}

// NewYAMLSerializer creates a new YAML serializer
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{}
}

func (s *YAMLSerializer) Serialize(snaps []TaskSnapshot) ([]byte, error) {
	data, err := yaml.Marshal(snaps)
	if err != nil {
		return nil, fmt.Errorf("yaml marshal failed: %w", err)
	}
	return data, nil
}

func (s *YAMLSerializer) Deserialize(data []byte) ([]TaskSnapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data is empty")
	}

	var snaps []TaskSnapshot
	if err := yaml.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("yaml unmarshal failed: %w", err)
	}
	return snaps, nil
}

func (s *YAMLSerializer) Name() string {
	return "yaml"
}
