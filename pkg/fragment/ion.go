// Package fragment builds the theoretical ion ladders of glycopeptide
// candidates.
package fragment

import (
	"fmt"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Kind is the ion family. Its numeric order is the rank used to award a
// contested peak: backbone before oxonium before Y.
type Kind int

const (
	KindBackbone Kind = iota
	KindOxonium
	KindStub
)

func (k Kind) String() string {
	switch k {
	case KindBackbone:
		return "backbone"
	case KindOxonium:
		return "oxonium"
	case KindStub:
		return "stub"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Rank orders ion families for peak tie-breaking; lower wins.
func (k Kind) Rank() int { return int(k) }

// Ion is a theoretical fragment. The concrete types are BackboneIon,
// OxoniumIon and StubIon; the set is closed.
type Ion interface {
	MZ() float64
	Charge() int
	Kind() Kind
	// Site identifies the fragment independent of charge state, so coverage
	// can count a cleavage once however many charges were generated for it.
	Site() string
	String() string

	isIon()
}

type ionBase struct {
	mz     float64
	charge int
}

func (b ionBase) MZ() float64 { return b.mz }
func (b ionBase) Charge() int { return b.charge }
func (ionBase) isIon()        {}

func chargeSuffix(z int) string {
	if z == 1 {
		return ""
	}
	return fmt.Sprintf("^%d", z)
}

// Series is the peptide terminus a backbone fragment retains.
type Series int

const (
	SeriesB Series = iota // N-terminal
	SeriesY               // C-terminal
)

func (s Series) String() string {
	if s == SeriesY {
		return "y"
	}
	return "b"
}

// BackboneIon is a b or y peptide fragment with the glycan lost.
type BackboneIon struct {
	ionBase
	Series  Series
	Ordinal int // number of residues retained
}

// NewBackboneIon builds a backbone ion from its neutral fragment mass.
func NewBackboneIon(series Series, ordinal int, neutralMass float64, charge int) BackboneIon {
	return BackboneIon{
		ionBase: ionBase{mz: core.MZ(neutralMass, charge), charge: charge},
		Series:  series,
		Ordinal: ordinal,
	}
}

func (BackboneIon) Kind() Kind { return KindBackbone }

func (i BackboneIon) Site() string { return fmt.Sprintf("%s%d", i.Series, i.Ordinal) }

func (i BackboneIon) String() string { return i.Site() + chargeSuffix(i.charge) }

// OxoniumIon is a glycan fragment ion, optionally after water losses.
type OxoniumIon struct {
	ionBase
	Glycan      core.GlycanComposition
	WaterLosses int
}

// NewOxoniumIon builds an oxonium ion for a glycan subset.
func NewOxoniumIon(glycan core.GlycanComposition, waterLosses, charge int) OxoniumIon {
	neutral := glycan.Mass() - float64(waterLosses)*core.MassH2O
	return OxoniumIon{
		ionBase:     ionBase{mz: core.MZ(neutral, charge), charge: charge},
		Glycan:      glycan,
		WaterLosses: waterLosses,
	}
}

func (OxoniumIon) Kind() Kind { return KindOxonium }

func (i OxoniumIon) Site() string {
	switch i.WaterLosses {
	case 0:
		return i.Glycan.String()
	case 1:
		return i.Glycan.String() + "-H2O"
	}
	return fmt.Sprintf("%s-%dH2O", i.Glycan, i.WaterLosses)
}

func (i OxoniumIon) String() string { return i.Site() + chargeSuffix(i.charge) }

// StubIon is a Y ion: the intact peptide carrying a residual glycan.
type StubIon struct {
	ionBase
	Residual     core.GlycanComposition
	ResidualMass float64
}

// NewStubIon builds a Y ion for the peptide plus a residual glycan.
func NewStubIon(peptideMass float64, residual core.GlycanComposition, charge int) StubIon {
	residualMass := residual.Mass()
	return StubIon{
		ionBase:      ionBase{mz: core.MZ(peptideMass+residualMass, charge), charge: charge},
		Residual:     residual,
		ResidualMass: residualMass,
	}
}

func (StubIon) Kind() Kind { return KindStub }

func (i StubIon) Site() string { return "Y" + i.Residual.String() }

func (i StubIon) String() string { return i.Site() + chargeSuffix(i.charge) }
