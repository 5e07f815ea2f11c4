// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/thyra-ai/thyra/pkg/core"
)

// Definition is the serialized form of a string-state machine. YAML and JSON
// both parse (yaml.v3 reads JSON documents).
type Definition struct {
	InitialState string                     `yaml:"initial_state" json:"initial_state"`
	States       map[string]StateDefinition `yaml:"states" json:"states"`
	GlobalTools  []string                   `yaml:"global_tools" json:"global_tools"`
}

// StateDefinition lists the tools of one state.
type StateDefinition struct {
	Tools []ToolDefinition `yaml:"tools" json:"tools"`
}

// ToolDefinition names a registered tool and its optional transition target.
type ToolDefinition struct {
	Name          string `yaml:"name" json:"name"`
	TransitionsTo string `yaml:"transitions_to" json:"transitions_to"`
}

// LoadFile reads a machine definition from disk and assembles it against the
// given tool set. Tool names in the definition must all resolve.
func LoadFile(path string, tools map[string]core.Tool) (Machine[string], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Machine[string]{}, fmt.Errorf("read machine definition: %w", err)
	}
	return Parse(data, tools)
}

// Parse assembles a machine from a serialized definition and a tool set.
func Parse(data []byte, tools map[string]core.Tool) (Machine[string], error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Machine[string]{}, fmt.Errorf("parse machine definition: %w", err)
	}
	return Assemble(def, tools)
}

// Assemble builds a machine from an already-decoded definition.
func Assemble(def Definition, tools map[string]core.Tool) (Machine[string], error) {
	if def.InitialState == "" {
		return Machine[string]{}, fmt.Errorf("machine definition has no initial_state")
	}
	if _, ok := def.States[def.InitialState]; !ok {
		return Machine[string]{}, fmt.Errorf("initial_state %q is not a defined state", def.InitialState)
	}

	m := New[string]().WithInitialState(def.InitialState)

	// Deterministic assembly order for stable tool advertising.
	states := make([]string, 0, len(def.States))
	for state := range def.States {
		states = append(states, state)
	}
	sort.Strings(states)

	for _, state := range states {
		for _, td := range def.States[state].Tools {
			tool, ok := tools[td.Name]
			if !ok {
				return Machine[string]{}, fmt.Errorf("state %q references unknown tool %q", state, td.Name)
			}
			if td.TransitionsTo != "" {
				if _, ok := def.States[td.TransitionsTo]; !ok {
					return Machine[string]{}, fmt.Errorf("tool %q transitions to undefined state %q", td.Name, td.TransitionsTo)
				}
				m = m.InState(state).WithTool(tool).TransitionsTo(td.TransitionsTo)
			} else {
				m = m.InState(state).WithTool(tool).Build()
			}
		}
	}

	for _, name := range def.GlobalTools {
		tool, ok := tools[name]
		if !ok {
			return Machine[string]{}, fmt.Errorf("global_tools references unknown tool %q", name)
		}
		m = m.WithGlobalTool(tool)
	}

	return m, nil
}
