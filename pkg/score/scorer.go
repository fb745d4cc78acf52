// Package score reduces a match result to a composite glycopeptide score with
// separable peptide, glycan and mass-accuracy evidence.
package score

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/match"
)

// MinScore is the composite score of a candidate with no matched ions.
const MinScore = 0.0

// tieEpsilon is the widest composite difference treated as a tie.
const tieEpsilon = 1e-9

// Weights combine the three evidence families into the composite score.
type Weights struct {
	Peptide      float64 `mapstructure:"peptide" yaml:"peptide"`
	Glycan       float64 `mapstructure:"glycan" yaml:"glycan"`
	MassAccuracy float64 `mapstructure:"mass-accuracy" yaml:"mass-accuracy"`
}

// Options tunes the scorer. All values are run configuration.
type Options struct {
	Weights Weights
	// OxoniumShare is the fraction of the glycan sub-score taken from
	// oxonium coverage; the rest comes from the Y-ion ladder.
	OxoniumShare float64
	// ReassignedCredit is the coverage credit of an ion whose peak was
	// awarded to a better-placed ion.
	ReassignedCredit float64
}

// DefaultOptions returns the documented default weights.
func DefaultOptions() Options {
	return Options{
		Weights:          Weights{Peptide: 1.0, Glycan: 1.0, MassAccuracy: 0.25},
		OxoniumShare:     0.4,
		ReassignedCredit: 0.5,
	}
}

// Max returns the composite of a candidate whose every generated ion
// (backbone, oxonium and Y) is matched with zero error.
func (o Options) Max() float64 {
	return o.Weights.Peptide + o.Weights.Glycan + o.Weights.MassAccuracy
}

// Score is the evaluation of one candidate against one spectrum.
type Score struct {
	Composite    float64
	Peptide      float64
	Glycan       float64
	MassAccuracy float64

	// Diagnostics, not part of the composite
	BackboneCoverage float64
	OxoniumCoverage  float64
	StubCoverage     float64
	Binomial         float64 // -log10 P(at least k random fragment matches)
	MatchedIons      int
	MeanAbsPPM       float64
}

// Compare orders scores by composite, breaking ties by the higher glycan
// sub-score. It returns +1 when a ranks above b.
func Compare(a, b Score) int {
	if d := a.Composite - b.Composite; math.Abs(d) > tieEpsilon {
		if d > 0 {
			return 1
		}
		return -1
	}
	if d := a.Glycan - b.Glycan; math.Abs(d) > tieEpsilon {
		if d > 0 {
			return 1
		}
		return -1
	}
	return 0
}

// Better reports whether s ranks strictly above o.
func (s Score) Better(o Score) bool { return Compare(s, o) > 0 }

// Scorer evaluates match results. It is stateless and safe for concurrent use.
type Scorer struct {
	opts Options
}

// NewScorer returns a scorer with the given options.
func NewScorer(opts Options) *Scorer {
	return &Scorer{opts: opts}
}

// Options returns the scorer settings.
func (sc *Scorer) Options() Options { return sc.opts }

type site struct {
	kind   fragment.Kind
	weight float64
	credit float64
}

// Score reduces a match result to a Score. A result with no matched ions
// yields MinScore on every term.
func (sc *Scorer) Score(res *match.Result, c *core.Candidate) Score {
	var out Score
	if !res.Matched() {
		return out
	}

	credit := make([]float64, len(res.Ions))
	for _, m := range res.Matches {
		credit[m.IonIndex] = 1
	}
	for _, r := range res.Reassigned {
		credit[r.IonIndex] = sc.opts.ReassignedCredit
	}

	fullGlycanMass := c.Glycan.Mass()
	sites := make(map[string]*site)
	for i, ion := range res.Ions {
		key := ion.Kind().String() + ":" + ion.Site()
		st, ok := sites[key]
		if !ok {
			st = &site{kind: ion.Kind(), weight: 1}
			if stub, isStub := ion.(fragment.StubIon); isStub && fullGlycanMass > 0 {
				st.weight = 1 + stub.ResidualMass/fullGlycanMass
			}
			sites[key] = st
		}
		st.credit = math.Max(st.credit, credit[i])
	}
	out.BackboneCoverage = coverage(sites, fragment.KindBackbone)
	out.OxoniumCoverage = coverage(sites, fragment.KindOxonium)
	out.StubCoverage = coverage(sites, fragment.KindStub)

	// peptide evidence: coverage weighted by the share of non-glycan
	// intensity the backbone ions explain
	backboneIntensity := res.MatchedIntensityOf(fragment.KindBackbone)
	glycanIntensity := res.MatchedIntensityOf(fragment.KindOxonium) + res.MatchedIntensityOf(fragment.KindStub)
	share := 0.0
	if denom := res.TotalIntensity - glycanIntensity; denom > 0 {
		share = math.Min(1, backboneIntensity/denom)
	}
	out.Peptide = out.BackboneCoverage * (1 + share) / 2

	out.Glycan = sc.opts.OxoniumShare*out.OxoniumCoverage + (1-sc.opts.OxoniumShare)*out.StubCoverage

	relErr := make([]float64, len(res.Matches))
	absPPM := make([]float64, len(res.Matches))
	for i, m := range res.Matches {
		relErr[i] = math.Abs(m.Error) / res.Tolerance.Width(m.Ion.MZ())
		absPPM[i] = math.Abs(m.ErrorPPM)
	}
	out.MassAccuracy = clamp01(1 - stat.Mean(relErr, nil))
	out.MeanAbsPPM = stat.Mean(absPPM, nil)
	out.MatchedIons = len(res.Matches)

	w := sc.opts.Weights
	out.Composite = w.Peptide*out.Peptide + w.Glycan*out.Glycan + w.MassAccuracy*out.MassAccuracy
	out.Binomial = binomialScore(res, sites, c.PeptideMass())
	return out
}

func coverage(sites map[string]*site, kind fragment.Kind) float64 {
	var num, den float64
	for _, st := range sites {
		if st.kind != kind {
			continue
		}
		num += st.weight * st.credit
		den += st.weight
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// binomialScore is the random-match model of Risk et al. (2013): the chance
// of k or more of n fragment sites matching by accident when each site hits
// with probability 2·tol·k/M. Oxonium ions are excluded because they do not
// depend on the peptide.
func binomialScore(res *match.Result, sites map[string]*site, peptideMass float64) float64 {
	n, k := 0, 0
	for _, st := range sites {
		if st.kind == fragment.KindOxonium {
			continue
		}
		n++
		if st.credit >= 1 {
			k++
		}
	}
	if k == 0 || n == 0 || peptideMass <= 0 {
		return 0
	}
	relTol := res.Tolerance.Width(peptideMass) / peptideMass
	p := math.Min(1, 2*relTol*float64(k)/peptideMass)
	tail := distuv.Binomial{N: float64(n), P: p}.Survival(float64(k - 1))
	if tail <= 0 || math.IsNaN(tail) {
		tail = 1e-170
	}
	return -math.Log10(tail)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
