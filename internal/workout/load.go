package workout

import (
	"context"
	"log/slog"

	"github.com/myrjola/liftscore/internal/envstruct"
	"github.com/myrjola/liftscore/internal/errors"
)

// LoadConfig holds the coefficients of the effective load model.
type LoadConfig struct {
	BaseLoad             float64 `env:"IMPACT_BASE_LOAD" envDefault:"10.0"`
	ExternalWeightFactor float64 `env:"IMPACT_EXTERNAL_WEIGHT_FACTOR" envDefault:"1.0"`
	BodyweightFactor     float64 `env:"IMPACT_BODYWEIGHT_FACTOR" envDefault:"0.25"`
	MinEffectiveLoad     float64 `env:"IMPACT_MIN_EFFECTIVE_LOAD" envDefault:"0.0"`
}

// DefaultLoadConfig returns the documented default coefficients.
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{
		BaseLoad:             10.0, //nolint:mnd // documented default
		ExternalWeightFactor: 1.0,
		BodyweightFactor:     0.25, //nolint:mnd // documented default
		MinEffectiveLoad:     0.0,
	}
}

// LoadConfigFromEnv reads the coefficients from the environment.
//
// Absent variables take their defaults. Malformed values are logged at warn level and fall back to the
// default of that coefficient, so the returned config is always usable.
func LoadConfigFromEnv(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) LoadConfig {
	var cfg LoadConfig
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "invalid impact configuration, using defaults for malformed values",
			errors.SlogError(err))
	}
	return cfg
}

// EffectiveLoad is the synthetic per-rep load of a set entry.
//
// Negative weights are treated as 0. The user's bodyweight only contributes to bodyweight movements.
// The result is never below MinEffectiveLoad.
func (c LoadConfig) EffectiveLoad(externalWeight float64, isBodyweight bool, userBodyweight float64) float64 {
	load := c.BaseLoad + max(0, externalWeight)*c.ExternalWeightFactor
	if isBodyweight {
		load += max(0, userBodyweight) * c.BodyweightFactor
	}
	return max(c.MinEffectiveLoad, load)
}
