package fragment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

func mustCandidate(t *testing.T, id int, seq, glycan string) *core.Candidate {
	t.Helper()
	g, err := core.ParseGlycanComposition(glycan)
	require.NoError(t, err)
	c, err := core.NewCandidate(id, core.Peptide{Sequence: seq}, g)
	require.NoError(t, err)
	return c
}

func ofKind(ions []Ion, k Kind) []Ion {
	var out []Ion
	for _, ion := range ions {
		if ion.Kind() == k {
			out = append(out, ion)
		}
	}
	return out
}

func TestBackboneIons(t *testing.T) {
	gen := NewGenerator(Options{MaxCharge: 2})
	c := mustCandidate(t, 1, "PEPTIDE", "{}")

	ions, err := gen.Generate(c)
	require.NoError(t, err)

	backbone := ofKind(ions, KindBackbone)
	// 6 cleavage sites, two series, two charges
	require.Len(t, backbone, 24)

	b1 := backbone[0].(BackboneIon)
	assert.Equal(t, SeriesB, b1.Series)
	assert.Equal(t, 1, b1.Ordinal)
	assert.InDelta(t, 98.060040, b1.MZ(), 1e-5)
	assert.Equal(t, "b1", b1.String())

	y1 := backbone[12].(BackboneIon)
	assert.Equal(t, SeriesY, y1.Series)
	assert.InDelta(t, 148.060434, y1.MZ(), 1e-5)

	y1z2 := backbone[13].(BackboneIon)
	assert.Equal(t, 2, y1z2.Charge())
	assert.Equal(t, "y1^2", y1z2.String())
	assert.Equal(t, "y1", y1z2.Site())
}

func TestBackboneModificationsFollowResidues(t *testing.T) {
	gen := NewGenerator(Options{MaxCharge: 1})
	plain, err := gen.Backbone(core.Peptide{Sequence: "ACK"})
	require.NoError(t, err)
	modified, err := gen.Backbone(core.Peptide{
		Sequence: "ACK",
		Modifications: []core.Modification{
			{Mass: 57.021464, Position: 1},
			{Mass: 42.010565, Position: core.NTermPosition},
		},
	})
	require.NoError(t, err)

	// b1 carries only the N-terminal mod, b2 both, y1 none, y2 the Cys mod.
	assert.InDelta(t, 42.010565, modified[0].MZ()-plain[0].MZ(), 1e-9)
	assert.InDelta(t, 42.010565+57.021464, modified[1].MZ()-plain[1].MZ(), 1e-9)
	assert.InDelta(t, 0, modified[2].MZ()-plain[2].MZ(), 1e-9)
	assert.InDelta(t, 57.021464, modified[3].MZ()-plain[3].MZ(), 1e-9)
}

func TestOxoniumIons(t *testing.T) {
	gen := NewGenerator(Options{MaxCharge: 2})
	c := mustCandidate(t, 1, "NK", "{Hex:1; HexNAc:2}")

	ions, err := gen.Generate(c)
	require.NoError(t, err)

	oxonium := ofKind(ions, KindOxonium)
	// Hex, HexNAc, HexHexNAc, HexNAc2, HexHexNAc2 plus two HexNAc water losses
	require.Len(t, oxonium, 7)

	var hexnac Ion
	for _, ion := range oxonium {
		if ion.Site() == "{HexNAc:1}" {
			hexnac = ion
		}
		assert.Equal(t, 1, ion.Charge())
	}
	require.NotNil(t, hexnac)
	assert.InDelta(t, 204.086649, hexnac.MZ(), 1e-5)

	last := oxonium[len(oxonium)-1].(OxoniumIon)
	assert.Equal(t, 2, last.WaterLosses)
	assert.InDelta(t, 168.065520, last.MZ(), 1e-5)
}

func TestOxoniumIonsDependOnlyOnGlycan(t *testing.T) {
	gen := NewGenerator(Options{})
	a := mustCandidate(t, 1, "NGTK", "{Hex:5; HexNAc:4; NeuAc:1}")
	b := mustCandidate(t, 2, "LNESR", "{Hex:5; HexNAc:4; NeuAc:1}")

	sites := func(ions []Ion) []string {
		var out []string
		for _, ion := range ofKind(ions, KindOxonium) {
			out = append(out, ion.String())
		}
		return out
	}
	ia, _ := gen.Generate(a)
	ib, _ := gen.Generate(b)
	if diff := cmp.Diff(sites(ia), sites(ib)); diff != "" {
		t.Errorf("oxonium ions differ between peptides (-a +b):\n%s", diff)
	}
}

func TestStubLadder(t *testing.T) {
	gen := NewGenerator(Options{MaxCharge: 2})
	c := mustCandidate(t, 1, "NK", "{Hex:1; HexNAc:2; NeuAc:1}")

	ions, err := gen.Generate(c)
	require.NoError(t, err)

	stubs := ofKind(ions, KindStub)
	// full, -NeuAc, -Hex, -HexNAc, -HexNAc: five residual states, two charges
	require.Len(t, stubs, 10)

	full := stubs[0].(StubIon)
	assert.Equal(t, c.Glycan, full.Residual)
	assert.InDelta(t, core.MZ(c.NeutralMass(), 1), full.MZ(), 1e-9)

	bare := stubs[8].(StubIon)
	assert.True(t, bare.Residual.IsEmpty())
	assert.InDelta(t, core.MZ(c.PeptideMass(), 1), bare.MZ(), 1e-9)

	for i := 2; i < len(stubs); i += 2 {
		prev := stubs[i-2].(StubIon)
		cur := stubs[i].(StubIon)
		assert.Equal(t, prev.Residual.Total()-1, cur.Residual.Total(), "one residue lost per step")
		assert.Less(t, cur.ResidualMass, prev.ResidualMass)
	}
	assert.Equal(t, 0, stubs[2].(StubIon).Residual.Count(core.NeuAc), "sialic acid leaves first")
}

func TestGenerateIsDeterministic(t *testing.T) {
	gen := NewGenerator(Options{MaxCharge: 3})
	c := mustCandidate(t, 1, "LCPDCPLLAPLNDSR", "{Hex:5; HexNAc:4; Fuc:1; NeuAc:2}")

	type row struct {
		Label string
		MZ    float64
	}
	project := func(ions []Ion) []row {
		out := make([]row, len(ions))
		for i, ion := range ions {
			out[i] = row{ion.String(), ion.MZ()}
		}
		return out
	}

	first, err := gen.Generate(c)
	require.NoError(t, err)
	second, err := gen.Generate(c)
	require.NoError(t, err)

	if diff := cmp.Diff(project(first), project(second), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Generate not order-stable (-first +second):\n%s", diff)
	}
}

func TestBuildCache(t *testing.T) {
	gen := NewGenerator(Options{})
	good := mustCandidate(t, 1, "NGTK", "{HexNAc:2}")
	other := mustCandidate(t, 2, "NVTR", "{Hex:3; HexNAc:2}")
	bad := &core.Candidate{ID: 3, Peptide: core.Peptide{Sequence: "NXTB"}}

	cache, failures, err := BuildCache(context.Background(), gen, []*core.Candidate{good, bad, other}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	require.Len(t, failures, 1)
	assert.Same(t, bad, failures[0].Candidate)
	assert.True(t, errors.Is(failures[0].Err, core.ErrUnknownResidue))

	ions, ok := cache.Ions(other)
	require.True(t, ok)
	want, _ := gen.Generate(other)
	assert.Len(t, ions, len(want))

	_, ok = cache.Ions(bad)
	assert.False(t, ok)
}

func TestBuildCacheCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := BuildCache(ctx, NewGenerator(Options{}), []*core.Candidate{mustCandidate(t, 1, "NGTK", "{}")}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
