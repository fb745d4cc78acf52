package core

import (
	"fmt"
	"sort"
	"strings"
)

// Peptide is a backbone sequence with positioned modifications.
type Peptide struct {
	Sequence      string
	Modifications []Modification
}

// NeutralMass returns the neutral monoisotopic mass of the bare peptide.
func (p Peptide) NeutralMass() (float64, error) {
	return CalculateNeutralMass(p.Sequence, p.Modifications)
}

// ModificationsAt returns the summed modification mass attached to one
// residue index (or to NTermPosition / len(Sequence) for the termini).
func (p Peptide) ModificationsAt(position int) float64 {
	total := 0.0
	for _, mod := range p.Modifications {
		if mod.Position == position {
			total += mod.Mass
		}
	}
	return total
}

// String renders the sequence with inline mass shifts, e.g.
// "n[+42.0106]PEPC[+57.0215]TIDE". Modifications are listed in position
// order so the rendering is canonical.
func (p Peptide) String() string {
	if len(p.Modifications) == 0 {
		return p.Sequence
	}
	mods := append([]Modification(nil), p.Modifications...)
	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].Position != mods[j].Position {
			return mods[i].Position < mods[j].Position
		}
		return mods[i].Mass < mods[j].Mass
	})

	var b strings.Builder
	next := 0
	for _, mod := range mods {
		if mod.Position == NTermPosition {
			fmt.Fprintf(&b, "n[%+.4f]", mod.Mass)
		}
	}
	for i, aa := range p.Sequence {
		b.WriteRune(aa)
		for next < len(mods) && mods[next].Position < i {
			next++
		}
		for next < len(mods) && mods[next].Position == i {
			fmt.Fprintf(&b, "[%+.4f]", mods[next].Mass)
			next++
		}
	}
	for _, mod := range mods {
		if mod.Position >= len(p.Sequence) {
			fmt.Fprintf(&b, "c[%+.4f]", mod.Mass)
		}
	}
	return b.String()
}

// Candidate is one glycopeptide hypothesis: a peptide backbone carrying a
// glycan composition. Candidates are immutable after NewCandidate.
type Candidate struct {
	ID      int
	Peptide Peptide
	Glycan  GlycanComposition

	// Decoy marks a null-model candidate; SourceID names the target it was
	// derived from.
	Decoy    bool
	SourceID int

	peptideMass float64
	neutralMass float64
}

// NewCandidate validates the residues and computes the neutral mass once.
func NewCandidate(id int, peptide Peptide, glycan GlycanComposition) (*Candidate, error) {
	peptideMass, err := peptide.NeutralMass()
	if err != nil {
		return nil, err
	}
	mods := append([]Modification(nil), peptide.Modifications...)
	peptide.Modifications = mods
	return &Candidate{
		ID:          id,
		Peptide:     peptide,
		Glycan:      glycan,
		SourceID:    id,
		peptideMass: peptideMass,
		neutralMass: peptideMass + glycan.Mass(),
	}, nil
}

// NewDecoy builds a decoy candidate derived from the target with sourceID.
func NewDecoy(id, sourceID int, peptide Peptide, glycan GlycanComposition) (*Candidate, error) {
	c, err := NewCandidate(id, peptide, glycan)
	if err != nil {
		return nil, err
	}
	c.Decoy = true
	c.SourceID = sourceID
	return c, nil
}

// NeutralMass returns peptide + glycan + modification mass.
func (c *Candidate) NeutralMass() float64 { return c.neutralMass }

// PeptideMass returns the neutral mass of the bare (deglycosylated) peptide.
func (c *Candidate) PeptideMass() float64 { return c.peptideMass }

// ComputeNeutralMass re-derives the neutral mass from the constituents.
func (c *Candidate) ComputeNeutralMass() (float64, error) {
	peptideMass, err := c.Peptide.NeutralMass()
	if err != nil {
		return 0, err
	}
	return peptideMass + c.Glycan.Mass(), nil
}

// Key identifies the chemical structure independent of ID and decoy tag.
func (c *Candidate) Key() string {
	return c.Peptide.String() + c.Glycan.String()
}

func (c *Candidate) String() string {
	if c.Decoy {
		return "DECOY_" + c.Key()
	}
	return c.Key()
}
