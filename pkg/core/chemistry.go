// Package core provides the chemistry, spectrum and candidate models shared
// by every stage of the identification engine.
package core

import (
	"fmt"
	"math"
	"strings"
)

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations. Electron mass is never applied.
	ProtonMass = 1.00727646688

	// Spacing between isotopic peaks of a peptide-sized ion (13C - 12C)
	IsotopeSpacing = 1.00335483
)

// MassH2O is the mass of one water molecule.
var MassH2O = Composition{H: 2, O: 1}.Mass()

// Composition stores elemental composition
type Composition struct {
	C, H, N, O, S, P int
}

// Add returns the element-wise sum of two compositions.
func (c Composition) Add(o Composition) Composition {
	return Composition{
		C: c.C + o.C,
		H: c.H + o.H,
		N: c.N + o.N,
		O: c.O + o.O,
		S: c.S + o.S,
		P: c.P + o.P,
	}
}

// Scale multiplies every element count by n.
func (c Composition) Scale(n int) Composition {
	return Composition{C: c.C * n, H: c.H * n, N: c.N * n, O: c.O * n, S: c.S * n, P: c.P * n}
}

// Mass returns the monoisotopic mass. Integer counts are summed first so the
// result does not depend on the order residues were accumulated in.
func (c Composition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS +
		float64(c.P)*MassP
}

// AminoAcidMasses maps amino acid one-letter codes to residue composition
var AminoAcidMasses = map[rune]Composition{
	'A': {C: 3, H: 5, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'G': {C: 2, H: 3, N: 1, O: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'V': {C: 5, H: 9, N: 1, O: 1},
}

// ResidueMass returns the monoisotopic residue mass of one amino acid.
func ResidueMass(aa rune) (float64, error) {
	comp, ok := AminoAcidMasses[aa]
	if !ok {
		return 0, &UnknownResidueError{Symbol: aa, Sequence: string(aa)}
	}
	return comp.Mass(), nil
}

// SequenceComposition sums the residue compositions of a sequence plus one
// water for the peptide termini.
func SequenceComposition(sequence string) (Composition, error) {
	comp := Composition{H: 2, O: 1} // Add water
	for _, aa := range sequence {
		aaComp, ok := AminoAcidMasses[aa]
		if !ok {
			return Composition{}, &UnknownResidueError{Symbol: aa, Sequence: sequence}
		}
		comp = comp.Add(aaComp)
	}
	return comp, nil
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide
func CalculateNeutralMass(sequence string, modifications []Modification) (float64, error) {
	comp, err := SequenceComposition(sequence)
	if err != nil {
		return 0, err
	}
	return comp.Mass() + TotalModMass(modifications), nil
}

// MZ converts a neutral mass to the m/z of its [M+zH]z+ ion.
func MZ(neutralMass float64, charge int) float64 {
	z := float64(charge)
	return (neutralMass + z*ProtonMass) / z
}

// NeutralMass converts the m/z of an [M+zH]z+ ion back to its neutral mass.
func NeutralMass(mz float64, charge int) float64 {
	z := float64(charge)
	return mz*z - z*ProtonMass
}

// PPMError returns the signed error of observed relative to theoretical in
// parts per million.
func PPMError(observed, theoretical float64) float64 {
	return (observed - theoretical) / theoretical * 1e6
}

// ToleranceUnit selects how a Tolerance value is interpreted.
type ToleranceUnit int

const (
	PPM ToleranceUnit = iota
	Dalton
)

func (u ToleranceUnit) String() string {
	if u == Dalton {
		return "da"
	}
	return "ppm"
}

// ParseToleranceUnit accepts "ppm", "da" or "dalton" in any case.
func ParseToleranceUnit(s string) (ToleranceUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ppm", "":
		return PPM, nil
	case "da", "dalton", "th":
		return Dalton, nil
	}
	return PPM, fmt.Errorf("unknown tolerance unit %q", s)
}

// Tolerance is a symmetric mass window around a theoretical value.
type Tolerance struct {
	Value float64
	Unit  ToleranceUnit
}

// PPMTolerance returns a parts-per-million tolerance.
func PPMTolerance(ppm float64) Tolerance { return Tolerance{Value: ppm, Unit: PPM} }

// DaltonTolerance returns a fixed-width tolerance.
func DaltonTolerance(da float64) Tolerance { return Tolerance{Value: da, Unit: Dalton} }

// Width returns the half-width of the window around theoretical, in Da.
func (t Tolerance) Width(theoretical float64) float64 {
	if t.Unit == Dalton {
		return t.Value
	}
	return math.Abs(theoretical) * t.Value * 1e-6
}

// Contains reports whether observed lies within the window around theoretical.
func (t Tolerance) Contains(observed, theoretical float64) bool {
	return math.Abs(observed-theoretical) <= t.Width(theoretical)
}

// Bounds returns the inclusive window around theoretical.
func (t Tolerance) Bounds(theoretical float64) (lo, hi float64) {
	w := t.Width(theoretical)
	return theoretical - w, theoretical + w
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%g %s", t.Value, t.Unit)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
