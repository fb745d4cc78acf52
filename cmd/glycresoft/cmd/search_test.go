package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/search"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSpectraDetectsFormat(t *testing.T) {
	mgfPath := writeFile(t, "run.MGF", "BEGIN IONS\nTITLE=a\nPEPMASS=500\nCHARGE=2+\n100 1\nEND IONS\n")
	mspPath := writeFile(t, "run.msp", "Name: b\nPrecursorMZ: 500\nCharge: 2\nNum peaks: 1\n100 1\n")
	txtPath := writeFile(t, "run.txt", "Name: c\nNum peaks: 0\n")

	tests := []struct {
		path, format string
		wantID       string
		wantErr      bool
	}{
		{mgfPath, "", "a", false},
		{mspPath, "", "b", false},
		{txtPath, "", "", true},
		{txtPath, "msp", "c", false},
		{txtPath, "mzml", "", true},
	}
	for _, tt := range tests {
		spectra, err := readSpectra(tt.path, tt.format)
		if tt.wantErr {
			if err == nil {
				t.Errorf("readSpectra(%s, %q) expected error", filepath.Base(tt.path), tt.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("readSpectra(%s, %q) error = %v", filepath.Base(tt.path), tt.format, err)
			continue
		}
		if len(spectra) != 1 || spectra[0].ID != tt.wantID {
			t.Errorf("readSpectra(%s, %q) = %v", filepath.Base(tt.path), tt.format, spectra)
		}
	}
}

func TestReadGlycanPool(t *testing.T) {
	path := writeFile(t, "glycans.txt", "# pool\n{Hex:5; HexNAc:4}\n\nHex:3,HexNAc:4,Fuc:1\n")
	pool, err := readGlycanPool(path)
	if err != nil {
		t.Fatalf("readGlycanPool() error = %v", err)
	}
	if len(pool) != 2 || pool[1].String() != "{Hex:3; HexNAc:4; Fuc:1}" {
		t.Errorf("readGlycanPool() = %v", pool)
	}

	bad := writeFile(t, "bad.txt", "{Hex:5}\n{Sugar:1}\n")
	if _, err := readGlycanPool(bad); err == nil {
		t.Error("expected an error for an unknown monosaccharide")
	}
}

func TestLoadModDatabase(t *testing.T) {
	path := writeFile(t, "mods.csv", "mod,massshift\nHexNAcylation,203.079373\n")
	db, err := loadModDatabase(path)
	if err != nil {
		t.Fatalf("loadModDatabase() error = %v", err)
	}
	if mass, ok := db.GetMass("hexnacylation"); !ok || mass != 203.079373 {
		t.Errorf("GetMass() = %v, %v", mass, ok)
	}
	if _, ok := db.GetMass("Carbamidomethyl"); !ok {
		t.Error("built-in modifications missing")
	}
}

func TestReadCandidatesCountsRejectedLines(t *testing.T) {
	path := writeFile(t, "hypothesis.txt", `LNESR {Hex:5; HexNAc:4}
PEPZK {Hex:5; HexNAc:2}
LNBSR {Hex:5; HexNAc:4}
LNESR {Hex:5; Sugar:1}
LNESR {Hex:five}
`)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, rejected, err := readCandidates(path, core.DefaultModDatabase(), quiet)
	if err != nil {
		t.Fatalf("readCandidates() error = %v", err)
	}
	if len(pool) != 1 {
		t.Errorf("got %d candidates, want 1", len(pool))
	}
	want := search.Tally{
		search.ReasonUnknownResidue:        2,
		search.ReasonUnknownMonosaccharide: 1,
		search.ReasonMalformedCandidate:    1,
	}
	if len(rejected) != len(want) {
		t.Fatalf("rejected = %v, want %v", rejected, want)
	}
	for reason, n := range want {
		if rejected[reason] != n {
			t.Errorf("rejected[%s] = %d, want %d", reason, rejected[reason], n)
		}
	}
}
