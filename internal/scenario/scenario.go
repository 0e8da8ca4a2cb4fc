package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/GridBench/internal/domain"
)

// Step is one timed command in a scenario, offset in seconds from start.
// The command fields sit next to "time" in both JSON and YAML.
type Step struct {
	Time           float64 `json:"time" yaml:"time"`
	domain.Command `yaml:",inline"`
}

// Scenario is a named test plan: timed fault steps plus validation rules.
type Scenario struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Events      []Step `json:"events" yaml:"events"`
	Validation  Rules  `json:"validation" yaml:"validation"`
}

// Load reads a scenario from JSON, or YAML for .yaml/.yml files, and sorts
// its steps by time.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &sc)
	default:
		err = json.Unmarshal(raw, &sc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	sc.sortSteps()
	return &sc, nil
}

func (s *Scenario) validate() error {
	for i, st := range s.Events {
		if st.Type == "" {
			return fmt.Errorf("event %d: type is required", i)
		}
		if st.Time < 0 {
			return fmt.Errorf("event %d: time must be >= 0", i)
		}
	}
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (s *Scenario) sortSteps() {
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].Time < s.Events[j].Time })
}

// Duration is the time of the last step, or 0 without steps.
func (s *Scenario) Duration() float64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].Time
}
