// Package config implements translator configuration parsing and validation.
package config

import (
	"encoding/json"
	"fmt"
)

// Provenance modes.
const (
	ProvenanceOff            = ""
	ProvenanceOn             = "on"
	ProvenanceSubtreeHeights = "subtreeHeights"
)

// Config carries the recognized translator options. Only these options
// affect translation behavior.
type Config struct {
	FactDir     string `json:"fact-dir,omitempty"`
	OutputDir   string `json:"output-dir,omitempty"`
	Engine      string `json:"engine,omitempty"`
	Provenance  string `json:"provenance,omitempty"`
	Incremental bool   `json:"incremental,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Compile     bool   `json:"compile,omitempty"`
	DLProgram   string `json:"dl-program,omitempty"`
	Generate    string `json:"generate,omitempty"`
	DebugReport string `json:"debug-report,omitempty"`
}

// ParseConfig unmarshals and validates a JSON configuration.
func ParseConfig(raw []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enum-valued options.
func (c *Config) Validate() error {
	switch c.Provenance {
	case ProvenanceOff, ProvenanceOn, ProvenanceSubtreeHeights:
	default:
		return fmt.Errorf("config: invalid provenance mode %q", c.Provenance)
	}
	return nil
}

// HasProvenance reports whether any provenance mode is enabled.
func (c *Config) HasProvenance() bool { return c.Provenance != ProvenanceOff }

// HasEngine reports whether a communication engine is configured.
func (c *Config) HasEngine() bool { return c.Engine != "" }

// HasProfile reports whether profiling instrumentation is requested.
func (c *Config) HasProfile() bool { return c.Profile != "" }

// Interpreted reports whether the unit is translated for the interpreter
// rather than compiled or generated output.
func (c *Config) Interpreted() bool {
	return !c.Compile && c.DLProgram == "" && c.Generate == ""
}
