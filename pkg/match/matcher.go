// Package match aligns theoretical ions with observed peaks.
package match

import (
	"math"
	"sort"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
)

// PeakMatch pairs one observed peak with the one ion that claimed it.
type PeakMatch struct {
	PeakIndex int
	Peak      core.Peak
	IonIndex  int
	Ion       fragment.Ion
	Error     float64 // observed - theoretical, in Th
	ErrorPPM  float64
}

// Reassignment records an ion that found an in-tolerance peak but lost it
// to a better-placed ion.
type Reassignment struct {
	IonIndex  int
	Ion       fragment.Ion
	PeakIndex int
	WinnerIon int // index of the ion that kept the peak
}

// Result is the outcome of matching one ion list against one peak list.
type Result struct {
	Ions       []fragment.Ion // the theoretical list that was matched
	Matches    []PeakMatch    // ordered by peak index
	Reassigned []Reassignment // ordered by ion index
	Unmatched  []int          // ion indices with no in-tolerance peak

	TotalIntensity       float64
	MatchedIntensity     float64
	UnexplainedIntensity float64
	Tolerance            core.Tolerance
}

// Matched reports whether any ion claimed a peak.
func (r *Result) Matched() bool { return len(r.Matches) > 0 }

// MatchedIntensityOf returns the intensity of peaks claimed by one ion family.
func (r *Result) MatchedIntensityOf(kind fragment.Kind) float64 {
	total := 0.0
	for _, m := range r.Matches {
		if m.Ion.Kind() == kind {
			total += m.Peak.Intensity
		}
	}
	return total
}

type claim struct {
	ion   int
	peak  int
	error float64
}

// Match assigns each ion its closest in-tolerance peak, then resolves peaks
// claimed by several ions: the smallest absolute error wins, then the lower
// ion rank, then the lower ion index. peaks must be sorted by m/z. Match has
// no side effects and is safe to call concurrently.
func Match(peaks []core.Peak, ions []fragment.Ion, tol core.Tolerance) Result {
	res := Result{Ions: ions, Tolerance: tol}
	for _, p := range peaks {
		res.TotalIntensity += p.Intensity
	}

	byPeak := make(map[int][]claim)
	for i, ion := range ions {
		p, ok := closestPeak(peaks, ion.MZ(), tol)
		if !ok {
			res.Unmatched = append(res.Unmatched, i)
			continue
		}
		byPeak[p] = append(byPeak[p], claim{ion: i, peak: p, error: peaks[p].MZ - ion.MZ()})
	}

	peakOrder := make([]int, 0, len(byPeak))
	for p := range byPeak {
		peakOrder = append(peakOrder, p)
	}
	sort.Ints(peakOrder)

	for _, p := range peakOrder {
		claims := byPeak[p]
		sort.SliceStable(claims, func(i, j int) bool {
			return outranks(claims[i], claims[j], ions)
		})
		winner := claims[0]
		ion := ions[winner.ion]
		res.Matches = append(res.Matches, PeakMatch{
			PeakIndex: p,
			Peak:      peaks[p],
			IonIndex:  winner.ion,
			Ion:       ion,
			Error:     winner.error,
			ErrorPPM:  core.PPMError(peaks[p].MZ, ion.MZ()),
		})
		res.MatchedIntensity += peaks[p].Intensity
		for _, lost := range claims[1:] {
			res.Reassigned = append(res.Reassigned, Reassignment{
				IonIndex:  lost.ion,
				Ion:       ions[lost.ion],
				PeakIndex: p,
				WinnerIon: winner.ion,
			})
		}
	}
	sort.Slice(res.Reassigned, func(i, j int) bool {
		return res.Reassigned[i].IonIndex < res.Reassigned[j].IonIndex
	})

	res.UnexplainedIntensity = res.TotalIntensity - res.MatchedIntensity
	if res.UnexplainedIntensity < 0 {
		res.UnexplainedIntensity = 0
	}
	return res
}

func outranks(a, b claim, ions []fragment.Ion) bool {
	ea, eb := math.Abs(a.error), math.Abs(b.error)
	if ea != eb {
		return ea < eb
	}
	ra, rb := ions[a.ion].Kind().Rank(), ions[b.ion].Kind().Rank()
	if ra != rb {
		return ra < rb
	}
	return a.ion < b.ion
}

// closestPeak returns the index of the in-tolerance peak nearest to mz; on an
// exact tie the lower m/z wins.
func closestPeak(peaks []core.Peak, mz float64, tol core.Tolerance) (int, bool) {
	lo, hi := tol.Bounds(mz)
	i := sort.Search(len(peaks), func(i int) bool { return peaks[i].MZ >= lo })

	best, bestErr := -1, math.Inf(1)
	for ; i < len(peaks) && peaks[i].MZ <= hi; i++ {
		if !tol.Contains(peaks[i].MZ, mz) {
			continue
		}
		if err := math.Abs(peaks[i].MZ - mz); err < bestErr {
			best, bestErr = i, err
		}
	}
	return best, best >= 0
}
