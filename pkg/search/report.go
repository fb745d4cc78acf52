package search

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/precursor"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/score"
)

// Reason names why a candidate or spectrum dropped out of a run.
type Reason string

const (
	ReasonInvalidSpectrum    Reason = "invalid-spectrum"
	ReasonNoOxoniumSignal    Reason = "no-oxonium-signal"
	ReasonNoPrecursorMatch   Reason = "no-precursor-match"
	ReasonNoFragmentMatch    Reason = "no-fragment-match"
	ReasonFragmentGeneration Reason = "fragment-generation"
	ReasonDecoyCollision     Reason = "decoy-collision"

	// candidate list lines rejected before the engine was built
	ReasonUnknownResidue        Reason = "unknown-residue"
	ReasonUnknownMonosaccharide Reason = "unknown-monosaccharide"
	ReasonMalformedCandidate    Reason = "malformed-candidate"
)

// CandidateReason classifies the error that rejected a candidate.
func CandidateReason(err error) Reason {
	switch {
	case errors.Is(err, core.ErrUnknownResidue):
		return ReasonUnknownResidue
	case errors.Is(err, core.ErrUnknownMonosaccharide):
		return ReasonUnknownMonosaccharide
	default:
		return ReasonMalformedCandidate
	}
}

// Tally counts dropped items by reason.
type Tally map[Reason]int

// Add counts n more items under reason.
func (t Tally) Add(reason Reason, n int) {
	if n > 0 {
		t[reason] += n
	}
}

// Merge adds every count of o.
func (t Tally) Merge(o Tally) {
	for r, n := range o {
		t.Add(r, n)
	}
}

// Total returns the number of dropped items.
func (t Tally) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// Reasons lists the reasons present, sorted.
func (t Tally) Reasons() []Reason {
	out := make([]Reason, 0, len(t))
	for r := range t {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Solution is one scored candidate for one spectrum.
type Solution struct {
	Candidate *core.Candidate
	Score     score.Score
	Hit       precursor.Hit
}

// better orders solutions by score, then by lower candidate ID.
func (s Solution) better(o Solution) bool {
	if c := score.Compare(s.Score, o.Score); c != 0 {
		return c > 0
	}
	return s.Candidate.ID < o.Candidate.ID
}

// SolutionSet is the thresholded list of target solutions kept for
// diagnostics, best first.
type SolutionSet struct {
	Solutions []Solution
	Mean      float64
	Variance  float64
}

// newSolutionSet keeps solutions scoring at least half of the best or half
// of the mean, whichever is lower, and at least floor. Mean and variance
// describe every solution offered; the variance uses an n-2 denominator and
// is 0 below three solutions.
func newSolutionSet(solutions []Solution, floor float64) SolutionSet {
	var set SolutionSet
	if len(solutions) == 0 {
		return set
	}
	scores := make([]float64, len(solutions))
	for i, s := range solutions {
		scores[i] = s.Score.Composite
	}
	set.Mean = stat.Mean(scores, nil)
	if n := len(scores); n >= 3 {
		ss := 0.0
		for _, v := range scores {
			ss += (v - set.Mean) * (v - set.Mean)
		}
		set.Variance = ss / float64(n-2)
	}

	cut := min(set.Mean/2, floats.Max(scores)/2)
	for _, s := range solutions {
		if s.Score.Composite >= cut && s.Score.Composite >= floor {
			set.Solutions = append(set.Solutions, s)
		}
	}
	sort.SliceStable(set.Solutions, func(i, j int) bool {
		return set.Solutions[i].better(set.Solutions[j])
	})
	return set
}

// SpectrumResult is the outcome of scoring one spectrum. Target and Decoy
// are nil when no candidate of that side matched a fragment.
type SpectrumResult struct {
	SpectrumID string
	Target     *Solution
	Decoy      *Solution
	Solutions  SolutionSet
	Signature  score.Signature
	// Skipped is set when the spectrum produced no solution at all.
	Skipped Reason
	Err     error
}

// IdentificationRecord is the reported identification of one spectrum.
type IdentificationRecord struct {
	SpectrumID        string
	Candidate         *core.Candidate
	Score             score.Score
	Decoy             bool
	QValue            float64
	Accepted          bool
	Charge            int
	IsotopeOffset     int
	PrecursorErrorPPM float64
	Signature         score.Signature
}

// SpectrumDiagnostics carries the per-spectrum solution set.
type SpectrumDiagnostics struct {
	SpectrumID string
	Signature  score.Signature
	Solutions  SolutionSet
}

// Report is the result of a completed run.
type Report struct {
	// Records holds one target record per identified spectrum, in input
	// order.
	Records []IdentificationRecord
	// DecoyRecords holds the best decoy of each spectrum, in input order.
	DecoyRecords []IdentificationRecord
	Diagnostics  []SpectrumDiagnostics
	Tally        Tally

	Spectra        int
	Accepted       int
	QThreshold     float64
	ScoreThreshold float64 // lowest accepted composite; 0 when none qualifies
}

// AcceptedRecords returns the accepted target records.
func (r *Report) AcceptedRecords() []IdentificationRecord {
	var out []IdentificationRecord
	for _, rec := range r.Records {
		if rec.Accepted {
			out = append(out, rec)
		}
	}
	return out
}
