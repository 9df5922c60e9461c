package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sbutler/safer-illinois-app/internal/codec"
)

// HistoryFile is a plaintext history as written by hand before sealing.
type HistoryFile struct {
	UserID  string             `yaml:"user_id"`
	Entries []codec.PlainEntry `yaml:"entries"`
}

// ReadHistoryFile parses a YAML (or JSON) history file.
func ReadHistoryFile(path string) (*HistoryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	var hf HistoryFile
	if err := yaml.Unmarshal(data, &hf); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", path, err)
	}
	return &hf, nil
}
