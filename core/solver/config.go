package solver

import (
	"fmt"
	"time"
)

// Weights is the objective weighting surface. The defaults below are a
// configuration default, not a solver invariant; deployments tune them.
type Weights struct {
	// Fairness multiplies the variance of assigned hours across employees.
	Fairness float64 `json:"fairness" yaml:"fairness"`
	// Preference multiplies the summed penalty of unsatisfied soft rules.
	Preference float64 `json:"preference" yaml:"preference"`
	// Cost multiplies the normalized total labor cost.
	Cost float64 `json:"cost" yaml:"cost"`
}

// Tier bounds one problem-size band. Problems are classified by decision
// variable count (compatible employee-shift pairs).
type Tier struct {
	MaxVariables int `json:"max_variables" yaml:"max_variables"`
	TimeoutMS    int `json:"timeout_ms" yaml:"timeout_ms"`
	Workers      int `json:"workers" yaml:"workers"`
}

// Timeout returns the tier's solve budget.
func (t Tier) Timeout() time.Duration { return time.Duration(t.TimeoutMS) * time.Millisecond }

// Config defines solver sizing and objective weights.
type Config struct {
	Small  Tier `json:"small" yaml:"small"`
	Medium Tier `json:"medium" yaml:"medium"`
	Large  Tier `json:"large" yaml:"large"`
	// MaxVariables is the hard ceiling: larger problems are rejected from
	// the exact solver and routed to the fallback heuristic.
	MaxVariables int     `json:"max_variables" yaml:"max_variables"`
	Seed         int64   `json:"seed" yaml:"seed"`
	Weights      Weights `json:"weights" yaml:"weights"`
}

// SetDefaults fills zero values with the documented defaults.
func (c *Config) SetDefaults() {
	if c.Small.MaxVariables == 0 {
		c.Small = Tier{MaxVariables: 200, TimeoutMS: 500, Workers: 1}
	}
	if c.Medium.MaxVariables == 0 {
		c.Medium = Tier{MaxVariables: 1000, TimeoutMS: 2000, Workers: 2}
	}
	if c.Large.MaxVariables == 0 {
		c.Large = Tier{MaxVariables: 5000, TimeoutMS: 10000, Workers: 4}
	}
	if c.MaxVariables == 0 {
		c.MaxVariables = c.Large.MaxVariables
	}
	if c.Weights == (Weights{}) {
		c.Weights = Weights{Fairness: 1.0, Preference: 0.6, Cost: 0.2}
	}
}

// Validate rejects configurations the solver cannot honor.
func (c Config) Validate() error {
	for name, t := range map[string]Tier{"small": c.Small, "medium": c.Medium, "large": c.Large} {
		if t.MaxVariables <= 0 {
			return fmt.Errorf("solver: %s tier max_variables must be positive", name)
		}
		if t.TimeoutMS <= 0 {
			return fmt.Errorf("solver: %s tier timeout_ms must be positive", name)
		}
		if t.Workers <= 0 {
			return fmt.Errorf("solver: %s tier workers must be positive", name)
		}
	}
	if c.Small.MaxVariables > c.Medium.MaxVariables || c.Medium.MaxVariables > c.Large.MaxVariables {
		return fmt.Errorf("solver: tier ceilings must be non-decreasing")
	}
	if c.MaxVariables < c.Large.MaxVariables {
		return fmt.Errorf("solver: max_variables must cover the large tier")
	}
	if c.Weights.Fairness < 0 || c.Weights.Preference < 0 || c.Weights.Cost < 0 {
		return fmt.Errorf("solver: objective weights must not be negative")
	}
	return nil
}

// tierFor classifies a problem by its variable count.
func (c Config) tierFor(variables int) Tier {
	switch {
	case variables <= c.Small.MaxVariables:
		return c.Small
	case variables <= c.Medium.MaxVariables:
		return c.Medium
	default:
		return c.Large
	}
}
