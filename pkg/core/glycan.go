package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Monosaccharide identifies one residue type a glycan composition can count.
type Monosaccharide int

const (
	Hex Monosaccharide = iota
	HexNAc
	Fuc
	NeuAc
	NeuGc
	HexA
	Pent
	Kdn

	numMonosaccharides
)

type monosaccharideInfo struct {
	name        string
	aliases     []string
	composition Composition
}

// Residue (dehydrated) compositions of each monosaccharide.
var monosaccharides = [numMonosaccharides]monosaccharideInfo{
	Hex:    {name: "Hex", aliases: []string{"Hexose"}, composition: Composition{C: 6, H: 10, O: 5}},
	HexNAc: {name: "HexNAc", composition: Composition{C: 8, H: 13, N: 1, O: 5}},
	Fuc:    {name: "Fuc", aliases: []string{"dHex"}, composition: Composition{C: 6, H: 10, O: 4}},
	NeuAc:  {name: "NeuAc", aliases: []string{"Neu5Ac"}, composition: Composition{C: 11, H: 17, N: 1, O: 8}},
	NeuGc:  {name: "NeuGc", aliases: []string{"Neu5Gc"}, composition: Composition{C: 11, H: 17, N: 1, O: 9}},
	HexA:   {name: "HexA", composition: Composition{C: 6, H: 8, O: 6}},
	Pent:   {name: "Pent", aliases: []string{"Xyl"}, composition: Composition{C: 5, H: 8, O: 4}},
	Kdn:    {name: "Kdn", composition: Composition{C: 9, H: 14, O: 8}},
}

// LossOrder is the order residues leave the glycan when the Y-ion ladder is
// walked from the intact glycopeptide down to the bare peptide: antenna caps
// first, the chitobiose core last.
var LossOrder = []Monosaccharide{NeuGc, NeuAc, Kdn, Fuc, HexA, Pent, Hex, HexNAc}

var monosaccharideByName = func() map[string]Monosaccharide {
	m := make(map[string]Monosaccharide)
	for i, info := range monosaccharides {
		m[strings.ToLower(info.name)] = Monosaccharide(i)
		for _, alias := range info.aliases {
			m[strings.ToLower(alias)] = Monosaccharide(i)
		}
	}
	return m
}()

func (m Monosaccharide) String() string {
	if m < 0 || m >= numMonosaccharides {
		return fmt.Sprintf("Monosaccharide(%d)", int(m))
	}
	return monosaccharides[m].name
}

// Composition returns the residue elemental composition.
func (m Monosaccharide) Composition() Composition {
	return monosaccharides[m].composition
}

// Mass returns the monoisotopic residue mass.
func (m Monosaccharide) Mass() float64 {
	return monosaccharides[m].composition.Mass()
}

// ParseMonosaccharide looks a monosaccharide up by name or alias.
func ParseMonosaccharide(name string) (Monosaccharide, error) {
	m, ok := monosaccharideByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &UnknownMonosaccharideError{Name: name}
	}
	return m, nil
}

// MonosaccharideMass returns the residue mass of a named monosaccharide.
func MonosaccharideMass(name string) (float64, error) {
	m, err := ParseMonosaccharide(name)
	if err != nil {
		return 0, err
	}
	return m.Mass(), nil
}

// GlycanComposition counts monosaccharide residues. It is a comparable value
// type; every operation returns a new composition.
type GlycanComposition struct {
	counts [numMonosaccharides]int
}

// NewGlycanComposition builds a composition from a name → count mapping.
func NewGlycanComposition(counts map[string]int) (GlycanComposition, error) {
	var g GlycanComposition
	for name, n := range counts {
		m, err := ParseMonosaccharide(name)
		if err != nil {
			return GlycanComposition{}, err
		}
		if n < 0 {
			return GlycanComposition{}, fmt.Errorf("negative count %d for %s", n, name)
		}
		g.counts[m] += n
	}
	return g, nil
}

// ParseGlycanComposition parses "{Hex:5; HexNAc:4; NeuAc:1}". Braces are
// optional and "," is accepted as a separator.
func ParseGlycanComposition(s string) (GlycanComposition, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	var g GlycanComposition
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.SplitN(field, ":", 2)
		if len(parts) != 2 {
			return GlycanComposition{}, fmt.Errorf("invalid glycan composition term %q, expected 'Name:count'", field)
		}
		m, err := ParseMonosaccharide(parts[0])
		if err != nil {
			return GlycanComposition{}, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || n < 0 {
			return GlycanComposition{}, fmt.Errorf("invalid count in glycan composition term %q", field)
		}
		g.counts[m] += n
	}
	return g, nil
}

// Count returns the number of residues of one monosaccharide.
func (g GlycanComposition) Count(m Monosaccharide) int {
	return g.counts[m]
}

// With returns a copy with the count of m replaced by n.
func (g GlycanComposition) With(m Monosaccharide, n int) GlycanComposition {
	g.counts[m] = n
	return g
}

// Total returns the number of residues in the composition.
func (g GlycanComposition) Total() int {
	total := 0
	for _, n := range g.counts {
		total += n
	}
	return total
}

// IsEmpty reports whether the composition has no residues.
func (g GlycanComposition) IsEmpty() bool {
	return g.Total() == 0
}

// Composition returns the summed elemental composition of all residues.
func (g GlycanComposition) Composition() Composition {
	var comp Composition
	for i, n := range g.counts {
		if n > 0 {
			comp = comp.Add(monosaccharides[i].composition.Scale(n))
		}
	}
	return comp
}

// Mass returns the residue mass of the glycan (no reducing-end water).
func (g GlycanComposition) Mass() float64 {
	return g.Composition().Mass()
}

// Contains reports whether every count in o fits within g.
func (g GlycanComposition) Contains(o GlycanComposition) bool {
	for i := range g.counts {
		if o.counts[i] > g.counts[i] {
			return false
		}
	}
	return true
}

// Sub returns g minus o, clamped at zero.
func (g GlycanComposition) Sub(o GlycanComposition) GlycanComposition {
	for i := range g.counts {
		g.counts[i] -= o.counts[i]
		if g.counts[i] < 0 {
			g.counts[i] = 0
		}
	}
	return g
}

// Monosaccharides lists the residue types present, in canonical order.
func (g GlycanComposition) Monosaccharides() []Monosaccharide {
	var out []Monosaccharide
	for i, n := range g.counts {
		if n > 0 {
			out = append(out, Monosaccharide(i))
		}
	}
	return out
}

// String renders the canonical "{Hex:5; HexNAc:4}" form.
func (g GlycanComposition) String() string {
	var parts []string
	for i, n := range g.counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", monosaccharides[i].name, n))
		}
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

// SubCompositions enumerates every non-empty composition contained in g with
// at most maxSize residues, ordered by size and then canonically.
func (g GlycanComposition) SubCompositions(maxSize int) []GlycanComposition {
	var out []GlycanComposition
	var walk func(i int, cur GlycanComposition, size int)
	walk = func(i int, cur GlycanComposition, size int) {
		if i == int(numMonosaccharides) {
			if size > 0 {
				out = append(out, cur)
			}
			return
		}
		for n := 0; n <= g.counts[i] && size+n <= maxSize; n++ {
			cur.counts[i] = n
			walk(i+1, cur, size+n)
		}
	}
	walk(0, GlycanComposition{}, 0)

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Total(), out[j].Total()
		if ti != tj {
			return ti < tj
		}
		return out[i].less(out[j])
	})
	return out
}

func (g GlycanComposition) less(o GlycanComposition) bool {
	for i := range g.counts {
		if g.counts[i] != o.counts[i] {
			return g.counts[i] > o.counts[i]
		}
	}
	return false
}
