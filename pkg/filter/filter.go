// Package filter provides peak filtering and transformation functions
package filter

import (
	"math"
	"sort"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     `mapstructure:"top-n" yaml:"top-n"`                       // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 `mapstructure:"intensity-cutoff" yaml:"intensity-cutoff"` // Keep only peaks above this % of base peak (0 = no cutoff)
	PrecursorWindow float64 `mapstructure:"precursor-window" yaml:"precursor-window"` // Drop peaks within this many Th of the precursor m/z (0 = keep)
}

// IsZero reports whether the configuration filters nothing beyond
// zero-intensity peaks.
func (c *Config) IsZero() bool {
	return c.TopN == 0 && c.IntensityCutoff == 0 && c.PrecursorWindow == 0
}

// Apply runs every configured filter on a copy of spec and returns the
// copy with its peaks sorted by m/z. spec itself is left untouched.
func (c *Config) Apply(spec *core.Spectrum) *core.Spectrum {
	out := spec.Clone()
	RemoveZeroIntensityPeaks(out)

	if c.PrecursorWindow > 0 {
		c.filterPrecursor(out)
	}

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(out)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		c.filterTopN(out)
	}

	// Ensure peaks are sorted after all filtering
	out.SortPeaks()
	return out
}

// filterPrecursor removes the unfragmented precursor, which otherwise
// dominates the base peak
func (c *Config) filterPrecursor(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if math.Abs(peak.MZ-spec.PrecursorMZ) > c.PrecursorWindow {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	base, ok := spec.BasePeak()
	if !ok {
		return
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * base.Intensity

	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)

	// intensity descending, m/z ascending among equals so the cut is stable
	sort.SliceStable(peaks, func(i, j int) bool {
		if peaks[i].Intensity != peaks[j].Intensity {
			return peaks[i].Intensity > peaks[j].Intensity
		}
		return peaks[i].MZ < peaks[j].MZ
	})

	spec.Peaks = peaks[:c.TopN]
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
