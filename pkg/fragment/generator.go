package fragment

import (
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Default generator settings.
const (
	DefaultMaxCharge      = 2
	DefaultOxoniumMaxSize = 4
)

// Options controls which ions the generator emits.
type Options struct {
	// MaxCharge is the highest charge generated for backbone and Y ions.
	MaxCharge int
	// OxoniumMaxSize is the largest glycan subset, in residues, emitted as
	// an oxonium ion.
	OxoniumMaxSize int
}

// Generator builds theoretical ion lists. It holds no mutable state and is
// safe for concurrent use.
type Generator struct {
	opts Options
}

// NewGenerator returns a generator, filling unset options with defaults.
func NewGenerator(opts Options) *Generator {
	if opts.MaxCharge <= 0 {
		opts.MaxCharge = DefaultMaxCharge
	}
	if opts.OxoniumMaxSize <= 0 {
		opts.OxoniumMaxSize = DefaultOxoniumMaxSize
	}
	return &Generator{opts: opts}
}

// Options returns the effective settings.
func (g *Generator) Options() Options { return g.opts }

// Generate returns the full ion list of a candidate: b then y backbone ions,
// oxonium ions, then the Y-ion ladder. The order depends only on the
// candidate and the options.
func (g *Generator) Generate(c *core.Candidate) ([]Ion, error) {
	backbone, err := g.Backbone(c.Peptide)
	if err != nil {
		return nil, err
	}
	oxonium := g.Oxonium(c.Glycan)
	stubs := g.Stubs(c.PeptideMass(), c.Glycan)

	ions := make([]Ion, 0, len(backbone)+len(oxonium)+len(stubs))
	ions = append(ions, backbone...)
	ions = append(ions, oxonium...)
	ions = append(ions, stubs...)
	return ions, nil
}

// Backbone returns naked b ions then y ions for every cleavage site and
// charge 1..MaxCharge.
func (g *Generator) Backbone(p core.Peptide) ([]Ion, error) {
	n := len(p.Sequence)
	if n < 2 {
		return nil, nil
	}

	// residue[i] carries the residue mass plus any modification on it
	residue := make([]float64, n)
	for i, aa := range p.Sequence {
		m, err := core.ResidueMass(aa)
		if err != nil {
			return nil, &core.UnknownResidueError{Symbol: aa, Sequence: p.Sequence}
		}
		residue[i] = m + p.ModificationsAt(i)
	}
	nTerm := p.ModificationsAt(core.NTermPosition)
	cTerm := p.ModificationsAt(n)

	ions := make([]Ion, 0, 2*(n-1)*g.opts.MaxCharge)

	prefix := nTerm
	for i := 1; i < n; i++ {
		prefix += residue[i-1]
		for z := 1; z <= g.opts.MaxCharge; z++ {
			ions = append(ions, NewBackboneIon(SeriesB, i, prefix, z))
		}
	}

	suffix := core.MassH2O + cTerm
	for i := 1; i < n; i++ {
		suffix += residue[n-i]
		for z := 1; z <= g.opts.MaxCharge; z++ {
			ions = append(ions, NewBackboneIon(SeriesY, i, suffix, z))
		}
	}
	return ions, nil
}

// Oxonium returns the singly charged oxonium ions of every glycan subset up
// to OxoniumMaxSize residues, followed by the water-loss diagnostics of
// HexNAc and the sialic acids.
func (g *Generator) Oxonium(glycan core.GlycanComposition) []Ion {
	var ions []Ion
	for _, sub := range glycan.SubCompositions(g.opts.OxoniumMaxSize) {
		ions = append(ions, NewOxoniumIon(sub, 0, 1))
	}

	single := func(m core.Monosaccharide) core.GlycanComposition {
		return core.GlycanComposition{}.With(m, 1)
	}
	if glycan.Count(core.HexNAc) > 0 {
		ions = append(ions,
			NewOxoniumIon(single(core.HexNAc), 1, 1),
			NewOxoniumIon(single(core.HexNAc), 2, 1))
	}
	for _, sialic := range []core.Monosaccharide{core.NeuAc, core.NeuGc} {
		if glycan.Count(sialic) > 0 {
			ions = append(ions, NewOxoniumIon(single(sialic), 1, 1))
		}
	}
	return ions
}

// Stubs walks the Y-ion ladder from the intact glycopeptide down to the
// bare peptide, removing one residue at a time in core.LossOrder.
func (g *Generator) Stubs(peptideMass float64, glycan core.GlycanComposition) []Ion {
	states := []core.GlycanComposition{glycan}
	residual := glycan
	for _, m := range core.LossOrder {
		for n := residual.Count(m); n > 0; n-- {
			residual = residual.With(m, n-1)
			states = append(states, residual)
		}
	}

	ions := make([]Ion, 0, len(states)*g.opts.MaxCharge)
	for _, state := range states {
		for z := 1; z <= g.opts.MaxCharge; z++ {
			ions = append(ions, NewStubIon(peptideMass, state, z))
		}
	}
	return ions
}
