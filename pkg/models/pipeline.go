package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor is the complete release pipeline configuration handed to the
// external orchestrator. It is built once and treated as read-only afterwards.
type Descriptor struct {
	Branches      []string `yaml:"branches" json:"branches"`
	Plugins       []Stage  `yaml:"plugins" json:"plugins"`
	TagFormat     string   `yaml:"tagFormat,omitempty" json:"tagFormat,omitempty"`
	RepositoryURL string   `yaml:"repositoryUrl,omitempty" json:"repositoryUrl,omitempty"`
}

// Stage finds the first plugin stage with the given name.
func (d *Descriptor) Stage(name string) (Stage, bool) {
	for _, s := range d.Plugins {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Options is the opaque options mapping of a stage. Values must be
// JSON-compatible.
type Options map[string]interface{}

// Decode copies the options into a typed shape through their JSON form.
// Unknown keys are ignored.
func (o Options) Decode(v interface{}) error {
	if o == nil {
		return nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

// OptionsFrom normalizes a typed option shape into an Options map holding
// only JSON value types.
func OptionsFrom(v interface{}) (Options, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	opts := Options{}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

// Stage is one named plugin step. A nil Options marks the bare-name form.
type Stage struct {
	Name    string
	Options Options
}

func NameOnly(name string) Stage {
	return Stage{Name: name}
}

func WithOptions(name string, opts Options) Stage {
	if opts == nil {
		opts = Options{}
	}
	return Stage{Name: name, Options: opts}
}

func (s Stage) HasOptions() bool {
	return s.Options != nil
}

func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.HasOptions() {
		return json.Marshal(s.Name)
	}
	return json.Marshal([]interface{}{s.Name, map[string]interface{}(s.Options)})
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("stage: empty value")
	}
	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return fmt.Errorf("stage: %w", err)
		}
		*s = NameOnly(name)
		return nil
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(trimmed, &pair); err != nil {
			return fmt.Errorf("stage: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("stage: expected [name, options] pair, got %d elements", len(pair))
		}
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return fmt.Errorf("stage: name: %w", err)
		}
		var opts Options
		if err := json.Unmarshal(pair[1], &opts); err != nil {
			return fmt.Errorf("stage %s: options: %w", name, err)
		}
		*s = WithOptions(name, opts)
		return nil
	default:
		return fmt.Errorf("stage: expected string or [name, options] pair")
	}
}

func (s Stage) MarshalYAML() (interface{}, error) {
	if !s.HasOptions() {
		return s.Name, nil
	}
	return []interface{}{s.Name, map[string]interface{}(s.Options)}, nil
}

func (s *Stage) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = NameOnly(node.Value)
		return nil
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("stage: line %d: expected [name, options] pair, got %d elements", node.Line, len(node.Content))
		}
		var name string
		if err := node.Content[0].Decode(&name); err != nil {
			return fmt.Errorf("stage: name: %w", err)
		}
		var opts map[string]interface{}
		if err := node.Content[1].Decode(&opts); err != nil {
			return fmt.Errorf("stage %s: options: %w", name, err)
		}
		// yaml decodes ints as int; route through JSON so YAML and JSON
		// inputs produce identical option values.
		normalized, err := OptionsFrom(opts)
		if err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		*s = WithOptions(name, normalized)
		return nil
	default:
		return fmt.Errorf("stage: line %d: expected string or [name, options] pair", node.Line)
	}
}

func (s Stage) String() string {
	if !s.HasOptions() {
		return s.Name
	}
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s{%s}", s.Name, strings.Join(keys, ","))
}
