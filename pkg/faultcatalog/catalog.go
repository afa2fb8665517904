// Copyright 2026 FCCU Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package faultcatalog loads a static YAML fault catalog and drives the
// engine's RegisterFault/BindFaultHsm calls in bulk at startup, the
// Go-idiomatic stand-in for a compile-time-populated fault table.
package faultcatalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/faultcollector/fccu-core/pkg/fccu"
)

// Entry is one fault definition in the catalog.
type Entry struct {
	Index        fccu.FaultIndex `yaml:"index"`
	Code         uint32          `yaml:"code"`
	Attr         uint32          `yaml:"attr"`
	Threshold    uint32          `yaml:"threshold"`
	Priority     string          `yaml:"priority"`
	BindHsm      bool            `yaml:"bind_hsm"`
	HsmThreshold uint32          `yaml:"hsm_threshold"`
}

// Catalog is the root of the YAML document: a flat list of fault entries.
type Catalog struct {
	Faults []Entry `yaml:"faults"`
}

// Load parses a YAML fault catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("faultcatalog: read %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("faultcatalog: parse %s: %w", path, err)
	}
	return &cat, nil
}

// ParsePriority maps a catalog priority string onto fccu.Priority,
// defaulting to PriorityLow for an empty or unrecognized value.
func ParsePriority(s string) fccu.Priority {
	switch s {
	case "critical":
		return fccu.PriorityCritical
	case "high":
		return fccu.PriorityHigh
	case "medium":
		return fccu.PriorityMedium
	default:
		return fccu.PriorityLow
	}
}

// Apply registers every catalog entry against engine, binding a per-fault
// HSM slot for entries that request one. It stops at the first error.
func (c *Catalog) Apply(engine *fccu.CollectorEngine) error {
	for _, e := range c.Faults {
		if err := engine.RegisterFault(e.Index, e.Code, e.Attr, e.Threshold); err != nil {
			return fmt.Errorf("faultcatalog: register index %d: %w", e.Index, err)
		}
		if e.BindHsm {
			if err := engine.BindFaultHsm(e.Index, e.HsmThreshold); err != nil {
				return fmt.Errorf("faultcatalog: bind hsm for index %d: %w", e.Index, err)
			}
		}
	}
	return nil
}
