package match

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
)

func glycan(t *testing.T, s string) core.GlycanComposition {
	t.Helper()
	g, err := core.ParseGlycanComposition(s)
	require.NoError(t, err)
	return g
}

func TestMatchClosestPeak(t *testing.T) {
	ion := fragment.NewBackboneIon(fragment.SeriesB, 2, 199.0, 1) // m/z 200.00728
	peaks := []core.Peak{
		{MZ: ion.MZ() - 0.004, Intensity: 10},
		{MZ: ion.MZ() + 0.001, Intensity: 20},
		{MZ: ion.MZ() + 0.05, Intensity: 30},
	}

	res := Match(peaks, []fragment.Ion{ion}, core.DaltonTolerance(0.01))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Matches[0].PeakIndex)
	assert.InDelta(t, 0.001, res.Matches[0].Error, 1e-9)
	assert.Empty(t, res.Unmatched)
	assert.InDelta(t, 60, res.TotalIntensity, 1e-9)
	assert.InDelta(t, 20, res.MatchedIntensity, 1e-9)
	assert.InDelta(t, 40, res.UnexplainedIntensity, 1e-9)
}

func TestMatchUnmatchedIon(t *testing.T) {
	ion := fragment.NewBackboneIon(fragment.SeriesY, 3, 400.0, 1)
	res := Match([]core.Peak{{MZ: 300, Intensity: 5}}, []fragment.Ion{ion}, core.PPMTolerance(20))

	assert.False(t, res.Matched())
	assert.Equal(t, []int{0}, res.Unmatched)
	assert.InDelta(t, 5, res.UnexplainedIntensity, 1e-9)
}

func TestMatchContestedPeakGoesToSmallestError(t *testing.T) {
	backbone := fragment.NewBackboneIon(fragment.SeriesB, 4, 500.0, 1)
	stub := fragment.NewStubIon(500.0-0.003, core.GlycanComposition{}, 1)
	oxonium := fragment.NewOxoniumIon(glycan(t, "{HexNAc:1}"), 0, 1)

	// one peak 0.001 from the backbone ion and 0.004 from the stub ion
	peaks := []core.Peak{{MZ: backbone.MZ() + 0.001, Intensity: 100}}

	res := Match(peaks, []fragment.Ion{stub, backbone, oxonium}, core.DaltonTolerance(0.01))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Matches[0].IonIndex, "smaller error wins")
	require.Len(t, res.Reassigned, 1)
	assert.Equal(t, 0, res.Reassigned[0].IonIndex)
	assert.Equal(t, 1, res.Reassigned[0].WinnerIon)
	assert.Equal(t, []int{2}, res.Unmatched)
}

func TestMatchTieBrokenByRank(t *testing.T) {
	const mass = 365.132196
	stub := fragment.NewStubIon(mass, core.GlycanComposition{}, 1)
	backbone := fragment.NewBackboneIon(fragment.SeriesB, 3, mass, 1)
	require.Equal(t, stub.MZ(), backbone.MZ())

	peaks := []core.Peak{{MZ: backbone.MZ() + 0.0005, Intensity: 50}}

	// the stub ion is listed first, so only rank can hand the peak to the backbone ion
	res := Match(peaks, []fragment.Ion{stub, backbone}, core.PPMTolerance(10))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, fragment.KindBackbone, res.Matches[0].Ion.Kind())
	require.Len(t, res.Reassigned, 1)
	assert.Equal(t, fragment.KindStub, res.Reassigned[0].Ion.Kind())
	assert.Empty(t, res.Unmatched, "a reassigned ion is not unmatched")
}

func TestMatchErrorsWithinTolerance(t *testing.T) {
	tol := core.PPMTolerance(15)
	rng := rand.New(rand.NewPCG(1, 2))

	var ions []fragment.Ion
	for i := 1; i <= 40; i++ {
		ions = append(ions, fragment.NewBackboneIon(fragment.SeriesB, i, 100+float64(i)*57.3, 1))
	}
	var peaks []core.Peak
	for _, ion := range ions {
		for k := 0; k < 3; k++ {
			jitter := (rng.Float64()*2 - 1) * 30e-6 * ion.MZ()
			peaks = append(peaks, core.Peak{MZ: ion.MZ() + jitter, Intensity: rng.Float64() * 100})
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].MZ < peaks[j].MZ })

	res := Match(peaks, ions, tol)
	for _, m := range res.Matches {
		assert.True(t, tol.Contains(m.Peak.MZ, m.Ion.MZ()), "match %s outside tolerance", m.Ion)
	}
}

func TestMatchPeakExclusivity(t *testing.T) {
	gen := fragment.NewGenerator(fragment.Options{MaxCharge: 3})
	c, err := core.NewCandidate(1, core.Peptide{Sequence: "GGGGGGGGK"}, glycan(t, "{Hex:3; HexNAc:4}"))
	require.NoError(t, err)
	ions, err := gen.Generate(c)
	require.NoError(t, err)

	// one peak per ion m/z; repeated glycine gives many near-duplicate ions
	var peaks []core.Peak
	for _, ion := range ions {
		peaks = append(peaks, core.Peak{MZ: ion.MZ(), Intensity: 1})
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].MZ < peaks[j].MZ })

	res := Match(peaks, ions, core.DaltonTolerance(0.5))
	seen := make(map[int]bool)
	for _, m := range res.Matches {
		assert.False(t, seen[m.PeakIndex], "peak %d claimed twice", m.PeakIndex)
		seen[m.PeakIndex] = true
	}
	assert.Equal(t, len(ions), len(res.Matches)+len(res.Reassigned)+len(res.Unmatched))
}
