package score

import (
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/fragment"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/match"
)

// StandardOxoniumIons are the single-residue oxonium ions used to decide
// whether a spectrum shows glycan fragmentation at all.
var StandardOxoniumIons = func() []fragment.Ion {
	var ions []fragment.Ion
	for _, m := range []core.Monosaccharide{core.HexNAc, core.Hex, core.NeuAc, core.Fuc} {
		ions = append(ions, fragment.NewOxoniumIon(core.GlycanComposition{}.With(m, 1), 0, 1))
	}
	return ions
}()

// Signature summarizes the oxonium ion content of a spectrum.
type Signature struct {
	Found  int     // standard oxonium ions present
	Ratio  float64 // oxonium intensity / total intensity
	GScore float64 // mean base-peak-normalized intensity over the standard ions
}

// OxoniumSignature scans a spectrum for the standard oxonium ions.
func OxoniumSignature(s *core.Spectrum, tol core.Tolerance) Signature {
	var sig Signature
	base, ok := s.BasePeak()
	if !ok || base.Intensity <= 0 {
		return sig
	}

	res := match.Match(s.Peaks, StandardOxoniumIons, tol)
	normalized := 0.0
	for _, m := range res.Matches {
		normalized += m.Peak.Intensity / base.Intensity
	}
	sig.Found = len(res.Matches)
	if res.TotalIntensity > 0 {
		sig.Ratio = res.MatchedIntensity / res.TotalIntensity
	}
	sig.GScore = normalized / float64(len(StandardOxoniumIons))
	return sig
}
