package main

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KirkDiggler/rpg-atb/internal/domain/atb"
	"github.com/KirkDiggler/rpg-atb/internal/domain/game/combat"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
)

const defaultScenarioTicks = 12

// Scenario is a scripted encounter: a roster and the plans declared up front
type Scenario struct {
	ID         string              `yaml:"id"`
	Name       string              `yaml:"name"`
	Driver     string              `yaml:"driver"`
	Ticks      int                 `yaml:"ticks"`
	Combatants []*combat.Combatant `yaml:"combatants"`
	Plan       []PlanStep          `yaml:"plan"`
}

// PlanStep queues one action or applies one ailment before the first tick
type PlanStep struct {
	Actor   string          `yaml:"actor"`
	User    string          `yaml:"user"` // defaults to the driver
	At      *int            `yaml:"at"`
	Action  *atb.Descriptor `yaml:"action"`
	Ailment *AilmentStep    `yaml:"ailment"`
}

// AilmentStep applies an ailment from the catalog
type AilmentStep struct {
	ID       string `yaml:"id"`
	Severity string `yaml:"severity"`
}

// LoadScenario reads a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scenario %s", path)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML and fills defaults
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "failed to decode scenario")
	}

	if strings.TrimSpace(sc.Driver) == "" {
		return nil, errors.InvalidArgument("scenario needs a driver")
	}
	if len(sc.Combatants) == 0 {
		return nil, errors.InvalidArgument("scenario needs combatants")
	}
	if sc.Ticks <= 0 {
		sc.Ticks = defaultScenarioTicks
	}

	for i := range sc.Plan {
		step := &sc.Plan[i]
		if step.Actor == "" {
			return nil, errors.InvalidArgumentf("plan step %d has no actor", i+1)
		}
		if (step.Action == nil) == (step.Ailment == nil) {
			return nil, errors.InvalidArgumentf("plan step %d needs exactly one of action or ailment", i+1)
		}
		if step.User == "" {
			step.User = sc.Driver
		}
	}
	return &sc, nil
}
