// Package config loads the fusion daemon's tuning configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig holds operator-adjustable parameters. Fields are pointers so
// a partial JSON file only overrides what it names; nil means "use the
// default".
type TuningConfig struct {
	// Strict switches the engine's failure policy from dropping bad packets
	// (the default) to aborting the merge on the first bad one.
	Strict *bool `json:"strict,omitempty"`

	// ExportDir is the directory snapshot archives are written under.
	ExportDir *string `json:"export_dir,omitempty"`

	// PersistOnFinalize writes each finalized snapshot to the snapshot
	// database automatically.
	PersistOnFinalize *bool `json:"persist_on_finalize,omitempty"`

	// MaxTraceBodyBytes bounds an ingested trace upload.
	MaxTraceBodyBytes *int64 `json:"max_trace_body_bytes,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() *TuningConfig {
	strict := false
	exportDir := "out"
	persist := false
	maxBody := int64(256 * 1024 * 1024)
	return &TuningConfig{
		Strict:            &strict,
		ExportDir:         &exportDir,
		PersistOnFinalize: &persist,
		MaxTraceBodyBytes: &maxBody,
	}
}

// Load reads a TuningConfig from a JSON file and overlays it on the
// defaults, so partial configs are safe.
func Load(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var overlay TuningConfig
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := Defaults()
	cfg.Merge(&overlay)
	return cfg, nil
}

// Merge overlays non-nil fields of other onto c.
func (c *TuningConfig) Merge(other *TuningConfig) {
	if other == nil {
		return
	}
	if other.Strict != nil {
		c.Strict = other.Strict
	}
	if other.ExportDir != nil {
		c.ExportDir = other.ExportDir
	}
	if other.PersistOnFinalize != nil {
		c.PersistOnFinalize = other.PersistOnFinalize
	}
	if other.MaxTraceBodyBytes != nil {
		c.MaxTraceBodyBytes = other.MaxTraceBodyBytes
	}
}
