package core

import (
	"errors"
	"math"
	"testing"
)

func TestSpectrumValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *Spectrum
		wantErr bool
	}{
		{
			name: "valid spectrum",
			spec: &Spectrum{
				ID:          "scan=1",
				PrecursorMZ: 400.5,
				Charges:     []int{2},
				Peaks: []Peak{
					{MZ: 100.0, Intensity: 1000.0},
					{MZ: 200.0, Intensity: 2000.0},
				},
			},
			wantErr: false,
		},
		{
			name: "no charges is allowed",
			spec: &Spectrum{
				ID:          "scan=2",
				PrecursorMZ: 400.5,
				Peaks:       []Peak{{MZ: 100.0, Intensity: 1000.0}},
			},
			wantErr: false,
		},
		{
			name: "missing identifier",
			spec: &Spectrum{
				PrecursorMZ: 400.5,
				Charges:     []int{2},
				Peaks:       []Peak{{MZ: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "zero charge",
			spec: &Spectrum{
				ID:          "scan=3",
				PrecursorMZ: 400.5,
				Charges:     []int{0},
				Peaks:       []Peak{{MZ: 100.0, Intensity: 1000.0}},
			},
			wantErr: true,
		},
		{
			name: "unsorted peaks",
			spec: &Spectrum{
				ID:          "scan=4",
				PrecursorMZ: 400.5,
				Charges:     []int{2},
				Peaks: []Peak{
					{MZ: 200.0, Intensity: 2000.0},
					{MZ: 100.0, Intensity: 1000.0},
				},
			},
			wantErr: true,
		},
		{
			name: "NaN m/z",
			spec: &Spectrum{
				ID:          "scan=5",
				PrecursorMZ: 400.5,
				Charges:     []int{2},
				Peaks:       []Peak{{MZ: math.NaN(), Intensity: 1000.0}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSpectrum) {
				t.Errorf("Validate() error %v does not match ErrInvalidSpectrum", err)
			}
		})
	}
}

func TestSortPeaks(t *testing.T) {
	spec := &Spectrum{
		Peaks: []Peak{
			{MZ: 300.0, Intensity: 100.0},
			{MZ: 100.0, Intensity: 200.0},
			{MZ: 200.0, Intensity: 150.0},
		},
	}

	spec.SortPeaks()

	expected := []float64{100.0, 200.0, 300.0}
	for i, peak := range spec.Peaks {
		if peak.MZ != expected[i] {
			t.Errorf("Peak %d: expected m/z %.1f, got %.1f", i, expected[i], peak.MZ)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	rt := 12.5
	spec := &Spectrum{
		ID:            "scan=9",
		Charges:       []int{2, 3},
		Peaks:         []Peak{{MZ: 100, Intensity: 1}},
		RetentionTime: &rt,
	}

	c := spec.Clone()
	c.Peaks[0].Intensity = 99
	c.Charges[0] = 4
	*c.RetentionTime = 1

	if spec.Peaks[0].Intensity != 1 || spec.Charges[0] != 2 || *spec.RetentionTime != 12.5 {
		t.Error("Clone shares state with the original spectrum")
	}
}

func TestBasePeakAndTotalIntensity(t *testing.T) {
	spec := &Spectrum{
		Peaks: []Peak{
			{MZ: 100.0, Intensity: 10},
			{MZ: 200.0, Intensity: 40},
			{MZ: 300.0, Intensity: 50},
		},
	}

	if total := spec.TotalIntensity(); total != 100 {
		t.Errorf("TotalIntensity() = %f, want 100", total)
	}
	base, ok := spec.BasePeak()
	if !ok || base.MZ != 300.0 {
		t.Errorf("BasePeak() = %+v, %v", base, ok)
	}
	if _, ok := (&Spectrum{}).BasePeak(); ok {
		t.Error("BasePeak() on empty spectrum should report false")
	}
}

func TestSpectrumName(t *testing.T) {
	spec := &Spectrum{ID: "scan=7", Charges: []int{2, 3}}

	if name := spec.Name(); name != "scan=7/2,3" {
		t.Errorf("Expected name scan=7/2,3, got %s", name)
	}
}
