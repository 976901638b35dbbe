package coordination

import (
	"fmt"
	"time"
)

// Weights are the relative contributions of each scoring component.
type Weights struct {
	Role         float64 `yaml:"role" json:"role"`
	Expertise    float64 `yaml:"expertise" json:"expertise"`
	Skills       float64 `yaml:"skills" json:"skills"`
	Availability float64 `yaml:"availability" json:"availability"`
	Performance  float64 `yaml:"performance" json:"performance"`
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Role:         0.25,
		Expertise:    0.25,
		Skills:       0.20,
		Availability: 0.15,
		Performance:  0.15,
	}
}

func (w Weights) total() float64 {
	return w.Role + w.Expertise + w.Skills + w.Availability + w.Performance
}

// Config holds the tunables of the orchestrator.
type Config struct {
	Weights             Weights `yaml:"weights" json:"weights"`
	AcceptanceThreshold float64 `yaml:"acceptance_threshold" json:"acceptance_threshold"`
	// OverloadedPercent: agents strictly above this load give up a task when rebalancing.
	OverloadedPercent float64 `yaml:"overloaded_percent" json:"overloaded_percent"`
	// UnderutilizedPercent: available agents strictly below this load receive tasks.
	UnderutilizedPercent float64 `yaml:"underutilized_percent" json:"underutilized_percent"`
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		AcceptanceThreshold:  0.5,
		OverloadedPercent:    80,
		UnderutilizedPercent: 40,
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"role": w.Role, "expertise": w.Expertise, "skills": w.Skills,
		"availability": w.Availability, "performance": w.Performance,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	if w.total() <= 0 {
		return fmt.Errorf("at least one scoring weight must be positive")
	}
	if c.AcceptanceThreshold < 0 || c.AcceptanceThreshold > 1 {
		return fmt.Errorf("acceptance threshold must be within [0,1], got %v", c.AcceptanceThreshold)
	}
	if c.UnderutilizedPercent < 0 || c.OverloadedPercent > 100 || c.UnderutilizedPercent >= c.OverloadedPercent {
		return fmt.Errorf("expected 0 <= underutilized (%v) < overloaded (%v) <= 100",
			c.UnderutilizedPercent, c.OverloadedPercent)
	}
	return nil
}

// SchedulerConfig controls the periodic rebalance loop.
type SchedulerConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval"`
	Projects    []string      `yaml:"projects" json:"projects"`
	InitiatedBy string        `yaml:"initiated_by" json:"initiated_by"`
	MaxParallel int           `yaml:"max_parallel" json:"max_parallel"`
	// TriggerRate limits manual Trigger calls per second; TriggerBurst is the bucket size.
	TriggerRate  float64 `yaml:"trigger_rate" json:"trigger_rate"`
	TriggerBurst int     `yaml:"trigger_burst" json:"trigger_burst"`
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:     5 * time.Minute,
		InitiatedBy:  "scheduler",
		MaxParallel:  4,
		TriggerRate:  1,
		TriggerBurst: 3,
	}
}
