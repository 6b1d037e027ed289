package feedback

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/myrjola/liftscore/internal/workout"

	_ "embed"
)

//go:embed rules.yaml
var defaultRules []byte

// GoalThreshold is the rep-decline tolerance of a training goal.
type GoalThreshold struct {
	IdealRepsMin     int     `yaml:"ideal_reps_min"`
	IdealRepsMax     int     `yaml:"ideal_reps_max"`
	DeclineTolerance float64 `yaml:"decline_tolerance"`
}

// ImbalanceRules configures antagonist pair checks.
type ImbalanceRules struct {
	Lower        float64     `yaml:"lower"`
	Upper        float64     `yaml:"upper"`
	LookbackDays int         `yaml:"lookback_days"`
	Pairs        [][2]string `yaml:"pairs"`
}

// PlanRules configures how profiles adjust planned weights.
type PlanRules struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	WeightIncrement float64 `yaml:"weight_increment"`
}

// Rules holds the tunable data of the feedback analysis.
type Rules struct {
	Goals         map[workout.Goal]GoalThreshold `yaml:"goals"`
	DefaultGoal   workout.Goal                   `yaml:"default_goal"`
	TooLightRatio float64                        `yaml:"too_light_ratio"`
	Imbalance     ImbalanceRules                 `yaml:"imbalance"`
	Plan          PlanRules                      `yaml:"plan"`
}

// DefaultRules returns the embedded rules.
func DefaultRules() Rules {
	rules, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded feedback rules: %v", err))
	}
	return rules
}

// LoadRules reads rules from a YAML file. An empty path returns [DefaultRules].
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read feedback rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return Rules{}, fmt.Errorf("feedback rules %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates YAML rules.
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := rules.validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r Rules) validate() error {
	if len(r.Goals) == 0 {
		return errors.New("no goals defined")
	}
	for goal, t := range r.Goals {
		if t.DeclineTolerance <= 0 || t.DeclineTolerance > 1 {
			return fmt.Errorf("goal %s: decline tolerance %v outside (0, 1]", goal, t.DeclineTolerance)
		}
	}
	if _, ok := r.Goals[r.DefaultGoal]; !ok {
		return fmt.Errorf("default goal %q is not defined", r.DefaultGoal)
	}
	if r.TooLightRatio < 1 {
		return fmt.Errorf("too light ratio %v below 1", r.TooLightRatio)
	}
	if r.Imbalance.Lower < 0 || r.Imbalance.Upper > 1 || r.Imbalance.Lower >= r.Imbalance.Upper {
		return fmt.Errorf("invalid imbalance band [%v, %v]", r.Imbalance.Lower, r.Imbalance.Upper)
	}
	if r.Imbalance.LookbackDays <= 0 {
		return fmt.Errorf("lookback days %d not positive", r.Imbalance.LookbackDays)
	}
	if r.Plan.WeightIncrement <= 0 {
		return fmt.Errorf("weight increment %v not positive", r.Plan.WeightIncrement)
	}
	return nil
}

// Threshold returns the threshold of goal, falling back to the default goal.
func (r Rules) Threshold(goal workout.Goal) GoalThreshold {
	if t, ok := r.Goals[goal]; ok {
		return t
	}
	return r.Goals[r.DefaultGoal]
}
