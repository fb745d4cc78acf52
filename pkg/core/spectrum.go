package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Spectrum is one deisotoped, centroided MS/MS scan handed over by the
// spectrum source. The engine never mutates a Spectrum.
type Spectrum struct {
	// Required fields
	ID          string  // Scan identifier (title, native id or index)
	PrecursorMZ float64 // Precursor m/z
	Charges     []int   // Candidate precursor charge states
	Peaks       []Peak  // Fragment peaks sorted by m/z

	// Optional metadata
	RetentionTime *float64 // Retention time in seconds
	ScanNumber    int

	// Internal tracking
	SourceFile   string
	SourceFormat string // mgf, msp
}

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
	Charge    int // Fragment charge if the deconvolution reported one, else 0
}

// Validate checks that a spectrum meets all requirements for scoring.
func (s *Spectrum) Validate() error {
	var errs []string

	// Required fields
	if s.ID == "" {
		errs = append(errs, "identifier is required")
	}
	if s.PrecursorMZ <= 0 || math.IsNaN(s.PrecursorMZ) || math.IsInf(s.PrecursorMZ, 0) {
		errs = append(errs, "precursor m/z must be positive")
	}
	for _, z := range s.Charges {
		if z <= 0 {
			errs = append(errs, fmt.Sprintf("charge %d must be positive", z))
		}
	}

	// Validate peaks
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	// Check if peaks are sorted
	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum " + s.ID,
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.SliceStable(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// Clone returns a deep copy so preprocessing can produce a new spectrum
// without touching the one the source handed over.
func (s *Spectrum) Clone() *Spectrum {
	c := *s
	c.Charges = append([]int(nil), s.Charges...)
	c.Peaks = append([]Peak(nil), s.Peaks...)
	if s.RetentionTime != nil {
		rt := *s.RetentionTime
		c.RetentionTime = &rt
	}
	return &c
}

// TotalIntensity returns the summed intensity of all peaks.
func (s *Spectrum) TotalIntensity() float64 {
	total := 0.0
	for _, p := range s.Peaks {
		total += p.Intensity
	}
	return total
}

// BasePeak returns the most intense peak, or false when there are no peaks.
func (s *Spectrum) BasePeak() (Peak, bool) {
	if len(s.Peaks) == 0 {
		return Peak{}, false
	}
	best := s.Peaks[0]
	for _, p := range s.Peaks[1:] {
		if p.Intensity > best.Intensity {
			best = p
		}
	}
	return best, true
}

// PrecursorNeutralMass returns the precursor neutral mass assuming charge.
func (s *Spectrum) PrecursorNeutralMass(charge int) float64 {
	return NeutralMass(s.PrecursorMZ, charge)
}

// Name returns the spectrum name in format "ID/Charge,Charge"
func (s *Spectrum) Name() string {
	if len(s.Charges) == 0 {
		return s.ID
	}
	zs := make([]string, len(s.Charges))
	for i, z := range s.Charges {
		zs[i] = fmt.Sprintf("%d", z)
	}
	return fmt.Sprintf("%s/%s", s.ID, strings.Join(zs, ","))
}
