package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fdr"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, fdr.Competition, c.FDRMode())
	assert.Greater(t, c.WorkerCount(), 0)

	tol, err := c.FragmentTolerance()
	require.NoError(t, err)
	assert.Equal(t, core.PPMTolerance(20), tol)
}

func TestLoadWithoutFileIsDefault(t *testing.T) {
	c, err := Load("", nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeSettings(t, `
precursor:
  ppm: 5
  isotope-width: 2
fragment:
  tolerance: 0.02
  unit: da
scoring:
  weights:
    glycan: 2
decoy:
  seed: 99
fdr:
  q-threshold: 0.01
`)
	t.Setenv("GLYCRESOFT_DECOY_SEED", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("precursor-ppm", 10, "")
	flags.Int("workers", 0, "")
	require.NoError(t, flags.Parse([]string{"--workers=3"}))

	c, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 5.0, c.Precursor.PPM, "unchanged flag does not override the file")
	assert.Equal(t, 2, c.Precursor.IsotopeWidth)
	assert.Equal(t, 3, c.Workers, "changed flag wins")
	assert.Equal(t, uint64(7), c.Decoy.Seed, "environment beats the file")
	assert.Equal(t, 2.0, c.Scoring.Weights.Glycan)
	assert.Equal(t, 1.0, c.Scoring.Weights.Peptide, "unset nested keys keep defaults")
	assert.Equal(t, 0.01, c.FDR.QThreshold)

	tol, err := c.FragmentTolerance()
	require.NoError(t, err)
	assert.Equal(t, core.DaltonTolerance(0.02), tol)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := writeSettings(t, `
precursor:
  ppm: -1
fdr:
  q-threshold: 2
  mode: pooled
`)
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfiguration))

	var cfgErr *core.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "precursor.ppm", cfgErr.Field)
	assert.Contains(t, err.Error(), "fdr.q-threshold")
	assert.Contains(t, err.Error(), "fdr.mode")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"charge range", func(c *Config) { c.Precursor.MinCharge, c.Precursor.MaxCharge = 4, 2 }, "precursor.min-charge"},
		{"unit", func(c *Config) { c.Fragment.Unit = "mmu" }, "fragment.unit"},
		{"zero weights", func(c *Config) { c.Scoring.Weights.Peptide, c.Scoring.Weights.Glycan, c.Scoring.Weights.MassAccuracy = 0, 0, 0 }, "scoring.weights"},
		{"oxonium share", func(c *Config) { c.Scoring.OxoniumShare = 1.5 }, "scoring.oxonium-share"},
		{"decoy ratio", func(c *Config) { c.Decoy.Ratio = 0 }, "decoy.ratio"},
		{"intensity cutoff", func(c *Config) { c.Peaks.IntensityCutoff = 100 }, "peaks.intensity-cutoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			var cfgErr *core.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefault(&buf))

	var decoded Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	if diff := cmp.Diff(Default(), decoded); diff != "" {
		t.Errorf("WriteDefault() mismatch (-want +got):\n%s", diff)
	}

	path := writeSettings(t, buf.String())
	loaded, err := Load(path, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), loaded); diff != "" {
		t.Errorf("Load(WriteDefault()) mismatch (-want +got):\n%s", diff)
	}
}
