// Package precursor selects the candidates whose neutral mass is compatible
// with a spectrum's precursor ion.
package precursor

import (
	"math"
	"sort"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Index is a mass-sorted, read-only view over a candidate pool.
type Index struct {
	candidates []*core.Candidate
}

// NewIndex sorts a copy of the pool by neutral mass (ties by ID).
func NewIndex(candidates []*core.Candidate) *Index {
	sorted := append([]*core.Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi, mj := sorted[i].NeutralMass(), sorted[j].NeutralMass()
		if mi != mj {
			return mi < mj
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &Index{candidates: sorted}
}

// Len returns the number of indexed candidates.
func (x *Index) Len() int { return len(x.candidates) }

// Search returns every candidate whose tolerance window, centred on its own
// neutral mass, contains mass.
func (x *Index) Search(mass float64, tol core.Tolerance) []*core.Candidate {
	lo, hi := searchBounds(mass, tol)
	start := sort.Search(len(x.candidates), func(i int) bool {
		return x.candidates[i].NeutralMass() >= lo
	})
	var out []*core.Candidate
	for end := start; end < len(x.candidates) && x.candidates[end].NeutralMass() <= hi; end++ {
		if c := x.candidates[end]; tol.Contains(mass, c.NeutralMass()) {
			out = append(out, c)
		}
	}
	return out
}

// searchBounds returns a theoretical-mass range that holds every candidate
// whose window can reach observed. A ppm window scales with the
// theoretical mass, so the range is slightly asymmetric around observed.
func searchBounds(observed float64, tol core.Tolerance) (lo, hi float64) {
	if tol.Unit == core.Dalton {
		return tol.Bounds(observed)
	}
	e := tol.Value * 1e-6
	lo = observed / (1 + e)
	if e < 1 {
		hi = observed / (1 - e)
	} else {
		hi = math.Inf(1)
	}
	// widen by a few ulps; Contains makes the final call
	return math.Nextafter(lo, math.Inf(-1)), math.Nextafter(hi, math.Inf(1))
}

// Hit is a candidate accepted for one spectrum, with the precursor
// interpretation that explained it best.
type Hit struct {
	Candidate     *core.Candidate
	Charge        int
	IsotopeOffset int     // number of 13C spacings subtracted from the observed mass
	ErrorPPM      float64 // (observed - theoretical) / theoretical, after isotope correction
}

// Filter matches spectra against an Index.
type Filter struct {
	Tolerance core.Tolerance
	// IsotopeWidth covers isotope offsets -IsotopeWidth..+IsotopeWidth.
	IsotopeWidth int
	// MinCharge and MaxCharge are tried when a spectrum reports no charge.
	MinCharge int
	MaxCharge int
}

// Charges returns the precursor charges to try for a spectrum.
func (f Filter) Charges(s *core.Spectrum) []int {
	if len(s.Charges) > 0 {
		return s.Charges
	}
	var zs []int
	for z := f.MinCharge; z <= f.MaxCharge; z++ {
		if z > 0 {
			zs = append(zs, z)
		}
	}
	return zs
}

// Candidates returns the candidates matching the spectrum precursor under any
// tried charge and isotope offset, ordered by candidate mass then ID. Each
// candidate appears once with its smallest-error interpretation. An empty
// result means the spectrum cannot be identified.
func (f Filter) Candidates(idx *Index, s *core.Spectrum) []Hit {
	best := make(map[*core.Candidate]Hit)
	for _, z := range f.Charges(s) {
		observed := s.PrecursorNeutralMass(z)
		for k := -f.IsotopeWidth; k <= f.IsotopeWidth; k++ {
			mass := observed - float64(k)*core.IsotopeSpacing
			for _, c := range idx.Search(mass, f.Tolerance) {
				hit := Hit{
					Candidate:     c,
					Charge:        z,
					IsotopeOffset: k,
					ErrorPPM:      core.PPMError(mass, c.NeutralMass()),
				}
				if prev, ok := best[c]; !ok || better(hit, prev) {
					best[c] = hit
				}
			}
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		mi, mj := hits[i].Candidate.NeutralMass(), hits[j].Candidate.NeutralMass()
		if mi != mj {
			return mi < mj
		}
		return hits[i].Candidate.ID < hits[j].Candidate.ID
	})
	return hits
}

// better prefers the smaller error, then no isotope correction, then the
// lower charge, so repeated runs choose the same interpretation.
func better(a, b Hit) bool {
	ea, eb := math.Abs(a.ErrorPPM), math.Abs(b.ErrorPPM)
	if ea != eb {
		return ea < eb
	}
	ia, ib := abs(a.IsotopeOffset), abs(b.IsotopeOffset)
	if ia != ib {
		return ia < ib
	}
	return a.Charge < b.Charge
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
