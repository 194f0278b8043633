// Package catalog holds the immutable scenario deck the game is played from.
// The deck ships embedded in the binary and is validated once at startup;
// nothing mutates it afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var scenariosYAML []byte

// Kind distinguishes how a scenario expects to be answered.
type Kind string

const (
	KindMultipleChoice Kind = "mcq"
	KindShortAnswer    Kind = "short"
)

// Scenario is one entry of the deck. JSON field names match the wire format
// the clients already consume.
type Scenario struct {
	ID           int      `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	Prompt       string   `yaml:"scenario" json:"scenario"`
	Task         string   `yaml:"task" json:"task"`
	Kind         Kind     `yaml:"type" json:"type"`
	Options      []string `yaml:"options,omitempty" json:"options,omitempty"`
	TimeLimitSec int      `yaml:"timeLimit" json:"timeLimit"`
}

// TimeLimit returns the question countdown for this scenario.
func (s Scenario) TimeLimit() time.Duration {
	return time.Duration(s.TimeLimitSec) * time.Second
}

// HasOption reports whether opt is one of the scenario's choices.
func (s Scenario) HasOption(opt string) bool {
	for _, o := range s.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Catalog is the loaded, validated deck.
type Catalog struct {
	scenarios []Scenario
	byID      map[int]Scenario
}

type deckFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Load parses and validates the embedded deck.
func Load() (*Catalog, error) {
	return parse(scenariosYAML)
}

func parse(data []byte) (*Catalog, error) {
	var file deckFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse scenario deck: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario deck is empty")
	}

	c := &Catalog{
		scenarios: file.Scenarios,
		byID:      make(map[int]Scenario, len(file.Scenarios)),
	}

	for _, s := range file.Scenarios {
		if s.ID < 1 || s.ID > len(file.Scenarios) {
			return nil, fmt.Errorf("scenario id %d out of range 1..%d", s.ID, len(file.Scenarios))
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %d", s.ID)
		}
		switch s.Kind {
		case KindMultipleChoice:
			if len(s.Options) < 2 {
				return nil, fmt.Errorf("scenario %d: multiple choice needs at least two options", s.ID)
			}
		case KindShortAnswer:
			if len(s.Options) != 0 {
				return nil, fmt.Errorf("scenario %d: short answer must not carry options", s.ID)
			}
		default:
			return nil, fmt.Errorf("scenario %d: unknown kind %q", s.ID, s.Kind)
		}
		if s.TimeLimitSec <= 0 {
			return nil, fmt.Errorf("scenario %d: time limit must be positive", s.ID)
		}
		c.byID[s.ID] = s
	}

	return c, nil
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id int) (Scenario, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// All returns the deck in id order. Callers must not mutate the slice.
func (c *Catalog) All() []Scenario {
	return c.scenarios
}

// Size returns the number of scenarios in the deck.
func (c *Catalog) Size() int {
	return len(c.scenarios)
}

// IDs returns every scenario id in deck order.
func (c *Catalog) IDs() []int {
	ids := make([]int, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		ids = append(ids, s.ID)
	}
	return ids
}
