// Package config is for run-wide settings that are unmarshalled from Viper:
// a YAML settings file, GLYCRESOFT_* environment variables and the
// command-line flags bound in cmd/glycresoft.
package config

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/decoy"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fdr"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/filter"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/precursor"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/score"
)

// EnvPrefix prefixes every environment override, e.g.
// GLYCRESOFT_PRECURSOR_PPM.
const EnvPrefix = "GLYCRESOFT"

// PrecursorConfig settings for the precursor mass filter
type PrecursorConfig struct {
	// mass tolerance in parts per million
	PPM float64 `mapstructure:"ppm" yaml:"ppm"`
	// charge range tried when a spectrum reports no charge
	MinCharge int `mapstructure:"min-charge" yaml:"min-charge"`
	MaxCharge int `mapstructure:"max-charge" yaml:"max-charge"`
	// isotope offsets tried on either side of the reported m/z
	IsotopeWidth int `mapstructure:"isotope-width" yaml:"isotope-width"`
}

// FragmentConfig settings for theoretical fragments and peak matching
type FragmentConfig struct {
	Tolerance      float64 `mapstructure:"tolerance" yaml:"tolerance"`
	Unit           string  `mapstructure:"unit" yaml:"unit"`
	MaxCharge      int     `mapstructure:"max-charge" yaml:"max-charge"`
	OxoniumMaxSize int     `mapstructure:"oxonium-max-size" yaml:"oxonium-max-size"`
}

// ScoringConfig settings for the composite score
type ScoringConfig struct {
	Weights          score.Weights `mapstructure:"weights" yaml:"weights"`
	OxoniumShare     float64       `mapstructure:"oxonium-share" yaml:"oxonium-share"`
	ReassignedCredit float64       `mapstructure:"reassigned-credit" yaml:"reassigned-credit"`
	// solutions scoring below this are dropped from the per-spectrum
	// diagnostic set
	DiagnosticFloor float64 `mapstructure:"diagnostic-floor" yaml:"diagnostic-floor"`
	// spectra whose oxonium intensity ratio is below this are skipped
	// (0 = score every spectrum)
	MinOxoniumRatio float64 `mapstructure:"min-oxonium-ratio" yaml:"min-oxonium-ratio"`
}

// DecoyConfig settings for decoy generation
type DecoyConfig struct {
	Seed       uint64 `mapstructure:"seed" yaml:"seed"`
	Ratio      int    `mapstructure:"ratio" yaml:"ratio"`
	MaxRetries int    `mapstructure:"max-retries" yaml:"max-retries"`
}

// FDRConfig settings for q-value estimation
type FDRConfig struct {
	QThreshold float64 `mapstructure:"q-threshold" yaml:"q-threshold"`
	Mode       string  `mapstructure:"mode" yaml:"mode"`
}

// Config is the root-level settings struct and is a mix of settings
// available in the settings file and those available from the command line
type Config struct {
	Precursor PrecursorConfig `mapstructure:"precursor" yaml:"precursor"`
	Fragment  FragmentConfig  `mapstructure:"fragment" yaml:"fragment"`
	Scoring   ScoringConfig   `mapstructure:"scoring" yaml:"scoring"`
	Decoy     DecoyConfig     `mapstructure:"decoy" yaml:"decoy"`
	FDR       FDRConfig       `mapstructure:"fdr" yaml:"fdr"`
	Peaks     filter.Config   `mapstructure:"peaks" yaml:"peaks"`
	// size of the spectrum worker pool (0 = one per CPU)
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// Default returns the documented defaults.
func Default() Config {
	opts := score.DefaultOptions()
	return Config{
		Precursor: PrecursorConfig{PPM: 10, MinCharge: 2, MaxCharge: 5, IsotopeWidth: 1},
		Fragment: FragmentConfig{
			Tolerance:      20,
			Unit:           "ppm",
			MaxCharge:      fragment.DefaultMaxCharge,
			OxoniumMaxSize: fragment.DefaultOxoniumMaxSize,
		},
		Scoring: ScoringConfig{
			Weights:          opts.Weights,
			OxoniumShare:     opts.OxoniumShare,
			ReassignedCredit: opts.ReassignedCredit,
			DiagnosticFloor:  0.1,
		},
		Decoy: DecoyConfig{Seed: 1, Ratio: 1, MaxRetries: decoy.DefaultMaxRetries},
		FDR:   FDRConfig{QThreshold: 0.05, Mode: fdr.Competition.String()},
	}
}

// FlagKeys maps command-line flag names to their nested settings keys.
var FlagKeys = map[string]string{
	"precursor-ppm":       "precursor.ppm",
	"min-charge":          "precursor.min-charge",
	"max-charge":          "precursor.max-charge",
	"isotope-width":       "precursor.isotope-width",
	"fragment-tolerance":  "fragment.tolerance",
	"fragment-unit":       "fragment.unit",
	"max-fragment-charge": "fragment.max-charge",
	"q-threshold":         "fdr.q-threshold",
	"fdr-mode":            "fdr.mode",
	"decoy-seed":          "decoy.seed",
	"decoy-ratio":         "decoy.ratio",
	"top-n":               "peaks.top-n",
	"workers":             "workers",
}

// Load builds a Config from defaults, the settings file at path (skipped
// when empty), GLYCRESOFT_* environment variables and any flags in flags
// named in FlagKeys, in increasing precedence. The result is validated.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unable to decode settings: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("precursor.ppm", c.Precursor.PPM)
	v.SetDefault("precursor.min-charge", c.Precursor.MinCharge)
	v.SetDefault("precursor.max-charge", c.Precursor.MaxCharge)
	v.SetDefault("precursor.isotope-width", c.Precursor.IsotopeWidth)

	v.SetDefault("fragment.tolerance", c.Fragment.Tolerance)
	v.SetDefault("fragment.unit", c.Fragment.Unit)
	v.SetDefault("fragment.max-charge", c.Fragment.MaxCharge)
	v.SetDefault("fragment.oxonium-max-size", c.Fragment.OxoniumMaxSize)

	v.SetDefault("scoring.weights.peptide", c.Scoring.Weights.Peptide)
	v.SetDefault("scoring.weights.glycan", c.Scoring.Weights.Glycan)
	v.SetDefault("scoring.weights.mass-accuracy", c.Scoring.Weights.MassAccuracy)
	v.SetDefault("scoring.oxonium-share", c.Scoring.OxoniumShare)
	v.SetDefault("scoring.reassigned-credit", c.Scoring.ReassignedCredit)
	v.SetDefault("scoring.diagnostic-floor", c.Scoring.DiagnosticFloor)
	v.SetDefault("scoring.min-oxonium-ratio", c.Scoring.MinOxoniumRatio)

	v.SetDefault("decoy.seed", c.Decoy.Seed)
	v.SetDefault("decoy.ratio", c.Decoy.Ratio)
	v.SetDefault("decoy.max-retries", c.Decoy.MaxRetries)

	v.SetDefault("fdr.q-threshold", c.FDR.QThreshold)
	v.SetDefault("fdr.mode", c.FDR.Mode)

	v.SetDefault("peaks.top-n", c.Peaks.TopN)
	v.SetDefault("peaks.intensity-cutoff", c.Peaks.IntensityCutoff)
	v.SetDefault("peaks.precursor-window", c.Peaks.PrecursorWindow)

	v.SetDefault("workers", c.Workers)
}

// Validate checks every setting and returns a *core.ConfigurationError
// (matching core.ErrConfiguration) for each bad one, joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &core.ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Precursor.PPM <= 0 {
		bad("precursor.ppm", "must be positive, got %v", c.Precursor.PPM)
	}
	if c.Precursor.MinCharge < 1 || c.Precursor.MaxCharge < c.Precursor.MinCharge {
		bad("precursor.min-charge", "charge range %d..%d is empty or below 1", c.Precursor.MinCharge, c.Precursor.MaxCharge)
	}
	if c.Precursor.IsotopeWidth < 0 {
		bad("precursor.isotope-width", "must not be negative, got %d", c.Precursor.IsotopeWidth)
	}

	if c.Fragment.Tolerance <= 0 {
		bad("fragment.tolerance", "must be positive, got %v", c.Fragment.Tolerance)
	}
	if _, err := core.ParseToleranceUnit(c.Fragment.Unit); err != nil {
		bad("fragment.unit", "%v", err)
	}
	if c.Fragment.MaxCharge < 1 {
		bad("fragment.max-charge", "must be at least 1, got %d", c.Fragment.MaxCharge)
	}
	if c.Fragment.OxoniumMaxSize < 1 {
		bad("fragment.oxonium-max-size", "must be at least 1, got %d", c.Fragment.OxoniumMaxSize)
	}

	w := c.Scoring.Weights
	if w.Peptide < 0 || w.Glycan < 0 || w.MassAccuracy < 0 {
		bad("scoring.weights", "weights must not be negative")
	} else if w.Peptide+w.Glycan+w.MassAccuracy == 0 {
		bad("scoring.weights", "at least one weight must be positive")
	}
	if !inUnit(c.Scoring.OxoniumShare) {
		bad("scoring.oxonium-share", "must be within [0, 1], got %v", c.Scoring.OxoniumShare)
	}
	if !inUnit(c.Scoring.ReassignedCredit) {
		bad("scoring.reassigned-credit", "must be within [0, 1], got %v", c.Scoring.ReassignedCredit)
	}
	if c.Scoring.DiagnosticFloor < 0 {
		bad("scoring.diagnostic-floor", "must not be negative, got %v", c.Scoring.DiagnosticFloor)
	}
	if !inUnit(c.Scoring.MinOxoniumRatio) {
		bad("scoring.min-oxonium-ratio", "must be within [0, 1], got %v", c.Scoring.MinOxoniumRatio)
	}

	if c.Decoy.Ratio < 1 {
		bad("decoy.ratio", "must be at least 1, got %d", c.Decoy.Ratio)
	}
	if c.Decoy.MaxRetries < 0 {
		bad("decoy.max-retries", "must not be negative, got %d", c.Decoy.MaxRetries)
	}

	if c.FDR.QThreshold <= 0 || c.FDR.QThreshold > 1 {
		bad("fdr.q-threshold", "must be within (0, 1], got %v", c.FDR.QThreshold)
	}
	if _, err := fdr.ParseMode(c.FDR.Mode); err != nil {
		bad("fdr.mode", "%v", err)
	}

	if c.Peaks.TopN < 0 {
		bad("peaks.top-n", "must not be negative, got %d", c.Peaks.TopN)
	}
	if c.Peaks.IntensityCutoff < 0 || c.Peaks.IntensityCutoff >= 100 {
		bad("peaks.intensity-cutoff", "must be within [0, 100), got %v", c.Peaks.IntensityCutoff)
	}
	if c.Peaks.PrecursorWindow < 0 {
		bad("peaks.precursor-window", "must not be negative, got %v", c.Peaks.PrecursorWindow)
	}
	if c.Workers < 0 {
		bad("workers", "must not be negative, got %d", c.Workers)
	}
	return errors.Join(errs...)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// PrecursorFilter returns the precursor filter settings.
func (c *Config) PrecursorFilter() precursor.Filter {
	return precursor.Filter{
		Tolerance:    core.PPMTolerance(c.Precursor.PPM),
		IsotopeWidth: c.Precursor.IsotopeWidth,
		MinCharge:    c.Precursor.MinCharge,
		MaxCharge:    c.Precursor.MaxCharge,
	}
}

// FragmentTolerance returns the fragment matching tolerance.
func (c *Config) FragmentTolerance() (core.Tolerance, error) {
	unit, err := core.ParseToleranceUnit(c.Fragment.Unit)
	if err != nil {
		return core.Tolerance{}, &core.ConfigurationError{Field: "fragment.unit", Message: err.Error()}
	}
	return core.Tolerance{Value: c.Fragment.Tolerance, Unit: unit}, nil
}

// FragmentOptions returns the fragment generator settings.
func (c *Config) FragmentOptions() fragment.Options {
	return fragment.Options{MaxCharge: c.Fragment.MaxCharge, OxoniumMaxSize: c.Fragment.OxoniumMaxSize}
}

// ScoreOptions returns the scorer settings.
func (c *Config) ScoreOptions() score.Options {
	return score.Options{
		Weights:          c.Scoring.Weights,
		OxoniumShare:     c.Scoring.OxoniumShare,
		ReassignedCredit: c.Scoring.ReassignedCredit,
	}
}

// DecoyOptions returns the decoy generator settings.
func (c *Config) DecoyOptions() decoy.Options {
	return decoy.Options{Seed: c.Decoy.Seed, Ratio: c.Decoy.Ratio, MaxRetries: c.Decoy.MaxRetries}
}

// FDRMode returns the parsed FDR pooling mode.
func (c *Config) FDRMode() fdr.Mode {
	mode, _ := fdr.ParseMode(c.FDR.Mode)
	return mode
}

// WorkerCount resolves Workers, defaulting to the number of CPUs.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Write encodes the settings as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return enc.Close()
}

// WriteDefault writes the default settings as YAML.
func WriteDefault(w io.Writer) error {
	return Default().Write(w)
}
