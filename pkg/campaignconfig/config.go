// Package campaignconfig decodes and validates the JSON campaign
// definition a client submits to the server — the input to pkg/planner.
package campaignconfig

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Config is the campaign config blob, stored verbatim (immutable) on the
// Campaign row and re-parsed by the Planner.
type Config struct {
	Name           string         `json:"name"`
	Models         []Model        `json:"models"`
	Engines        []Engine       `json:"engines"`
	Benchmarks     []string       `json:"benchmarks"`
	QuantFilter    QuantFilter    `json:"quant_filter"`
	ResourceLimits ResourceLimits `json:"resource_limits"`
	Disk           DiskConfig     `json:"disk"`
}

// Model is one entry in Config.Models. At least one of the repo/tag
// references must be set for the model to produce any runs.
type Model struct {
	Name            string  `json:"name"`
	Params          string  `json:"params"`
	SafetensorsRepo string  `json:"safetensors_repo"`
	GGUFRepo        string  `json:"gguf_repo"`
	OllamaTag       string  `json:"ollama_tag"`
	EstimatedSizeGB float64 `json:"estimated_size_gb"`
}

// Engine is one entry in Config.Engines.
type Engine struct {
	Name   string          `json:"name"`
	Suite  string          `json:"suite"`
	Config json.RawMessage `json:"config"`
	Mode   string          `json:"mode"`
}

const (
	EngineModeDocker = "docker"
	EngineModeNative = "native"
)

// QuantFilter narrows discovered quants: skip_patterns subtracts, then
// include_only intersects, both evaluated as globs over the quant token.
type QuantFilter struct {
	SkipPatterns []string `json:"skip_patterns"`
	IncludeOnly  []string `json:"include_only"`
}

// ResourceLimits bounds what the Planner will schedule.
type ResourceLimits struct {
	// MaxModelSizeGB of 0 means no limit.
	MaxModelSizeGB float64 `json:"max_model_size_gb"`
}

// DiskConfig is carried through to the agent side; the Planner does not
// interpret it itself.
type DiskConfig struct {
	ReserveGB       int  `json:"reserve_gb"`
	CleanupAfterRun bool `json:"cleanup_after_run"`
}

// Parse decodes a campaign config blob and validates it structurally.
func Parse(raw json.RawMessage) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse campaign config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural invariants the Planner relies on: every
// model and engine has a name, every engine has a recognized mode, and
// there is at least one model, engine, and benchmark to cross-product.
func (c Config) Validate() error {
	if c.Name == "" {
		return errors.New("campaign config: name is required")
	}
	if len(c.Models) == 0 {
		return errors.New("campaign config: at least one model is required")
	}
	if len(c.Engines) == 0 {
		return errors.New("campaign config: at least one engine is required")
	}
	if len(c.Benchmarks) == 0 {
		return errors.New("campaign config: at least one benchmark is required")
	}
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("campaign config: models[%d]: name is required", i)
		}
		if m.SafetensorsRepo == "" && m.GGUFRepo == "" && m.OllamaTag == "" {
			return fmt.Errorf("campaign config: models[%d] %q: no repo/tag reference set", i, m.Name)
		}
	}
	for i, e := range c.Engines {
		if e.Name == "" {
			return fmt.Errorf("campaign config: engines[%d]: name is required", i)
		}
		if e.Mode != EngineModeDocker && e.Mode != EngineModeNative {
			return fmt.Errorf("campaign config: engines[%d] %q: mode must be %q or %q", i, e.Name, EngineModeDocker, EngineModeNative)
		}
	}
	if c.ResourceLimits.MaxModelSizeGB < 0 {
		return errors.New("campaign config: resource_limits.max_model_size_gb must be >= 0")
	}
	return nil
}
