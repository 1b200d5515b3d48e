// config.go - YAML patch bank loading for the lydplay CLI.
//
// Grounded on the teacher's former config loader (a flat YAML document
// unmarshalled straight into exported struct fields via gopkg.in/yaml.v3,
// no schema validation library) generalized from a single engine-config
// document to a bank of named instrument patches.

package lyd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PatchSpec is one named entry in a patch bank file: the expression
// source to compile plus default voice settings a host can apply without
// re-reading the source.
type PatchSpec struct {
	Name     string  `yaml:"name"`
	Source   string  `yaml:"source"`
	Pan      float64 `yaml:"pan"`
	Duration float64 `yaml:"duration_seconds"`
}

// PatchBank is a named collection of patches, typically one YAML file
// per instrument set.
type PatchBank struct {
	SampleRate float64     `yaml:"sample_rate"`
	Patches    []PatchSpec `yaml:"patches"`
}

// LoadPatchBank reads and parses a patch bank YAML file.
func LoadPatchBank(path string) (*PatchBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lyd: reading patch bank %s: %w", path, err)
	}
	var bank PatchBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("lyd: parsing patch bank %s: %w", path, err)
	}
	return &bank, nil
}

// Find returns the named patch, or nil if the bank has none by that name.
func (b *PatchBank) Find(name string) *PatchSpec {
	for i := range b.Patches {
		if b.Patches[i].Name == name {
			return &b.Patches[i]
		}
	}
	return nil
}
