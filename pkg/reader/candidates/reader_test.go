package candidates

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

func TestParseSequence(t *testing.T) {
	db := core.DefaultModDatabase()
	tests := []struct {
		name    string
		raw     string
		wantSeq string
		want    []core.Modification
	}{
		{
			name:    "plain",
			raw:     "LNESR",
			wantSeq: "LNESR",
		},
		{
			name:    "inline masses",
			raw:     "n[+42.0106]PEPC[+57.021]TIDEKc[-0.984]",
			wantSeq: "PEPCTIDEK",
			want: []core.Modification{
				{Mass: 42.0106, Position: core.NTermPosition},
				{Mass: 57.021, Position: 3},
				{Mass: -0.984, Position: 9},
			},
		},
		{
			name:    "named",
			raw:     "M(Oxidation)NC(Carbamidomethyl)TK",
			wantSeq: "MNCTK",
			want: []core.Modification{
				{Mass: 15.994915, Position: 0, Name: "Oxidation"},
				{Mass: 57.021464, Position: 2, Name: "Carbamidomethyl"},
			},
		},
		{
			name:    "named in brackets",
			raw:     "NGTC[Carbamidomethyl]R",
			wantSeq: "NGTCR",
			want:    []core.Modification{{Mass: 57.021464, Position: 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSequence(tt.raw, db)
			if err != nil {
				t.Fatalf("ParseSequence(%q) error = %v", tt.raw, err)
			}
			if got.Sequence != tt.wantSeq {
				t.Errorf("Sequence = %q, want %q", got.Sequence, tt.wantSeq)
			}
			if len(got.Modifications) != len(tt.want) {
				t.Fatalf("Modifications = %+v, want %+v", got.Modifications, tt.want)
			}
			for i, want := range tt.want {
				mod := got.Modifications[i]
				if math.Abs(mod.Mass-want.Mass) > 1e-9 || mod.Position != want.Position || mod.Name != want.Name {
					t.Errorf("mod %d = %+v, want %+v", i, mod, want)
				}
			}
		})
	}
}

func TestParseSequenceErrors(t *testing.T) {
	db := core.DefaultModDatabase()
	tests := []struct {
		raw  string
		want error
	}{
		{"PEPXB", core.ErrUnknownResidue},
		{"PEPC(Unobtainium)K", nil},
		{"PEPKc[-0.98]R", nil},
		{"", nil},
	}
	for _, tt := range tests {
		_, err := ParseSequence(tt.raw, db)
		if err == nil {
			t.Errorf("ParseSequence(%q) expected error", tt.raw)
			continue
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("ParseSequence(%q) error = %v, want %v", tt.raw, err, tt.want)
		}
	}
}

const candidateList = `# sequence glycan
LNESR {Hex:5; HexNAc:4}
EEQYNSTYR	{Hex:5; HexNAc:4; NeuAc:2}

NC(Carbamidomethyl)TK {Hex:3; HexNAc:4; Fuc:1}
PEPZK {Hex:5; HexNAc:2}
LNESR {Hex:5; Sugar:1}
GLVNGTLNQSR
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(candidateList), nil)
	cands, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(cands) != 4 {
		t.Fatalf("ReadAll() returned %d candidates, want 4", len(cands))
	}
	for i, c := range cands {
		if c.ID != i+1 {
			t.Errorf("candidate %d has ID %d", i, c.ID)
		}
	}
	if got := cands[1].Glycan.String(); got != "{Hex:5; HexNAc:4; NeuAc:2}" {
		t.Errorf("glycan = %s", got)
	}
	if !cands[3].Glycan.IsEmpty() {
		t.Errorf("bare peptide carries glycan %s", cands[3].Glycan)
	}

	rejected := r.Rejected()
	if len(rejected) != 2 {
		t.Fatalf("Rejected() = %v, want 2 lines", rejected)
	}
	if rejected[0].Line != 6 || !errors.Is(rejected[0], core.ErrUnknownResidue) {
		t.Errorf("rejected[0] = %v", rejected[0])
	}
	if rejected[1].Line != 7 || !errors.Is(rejected[1], core.ErrUnknownMonosaccharide) {
		t.Errorf("rejected[1] = %v", rejected[1])
	}
}
