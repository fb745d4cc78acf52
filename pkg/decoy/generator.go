// Package decoy builds mass-matched null-model candidates for target-decoy
// FDR estimation.
package decoy

import (
	"math/rand/v2"
	"sort"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// DefaultMaxRetries bounds the shuffle attempts after a collision.
const DefaultMaxRetries = 10

// Options controls decoy construction.
type Options struct {
	// Ratio is the number of decoys generated per target.
	Ratio int
	// MaxRetries is the number of shuffles tried after the reversed
	// sequence collides with a target.
	MaxRetries int
	// Seed makes the shuffles reproducible.
	Seed uint64
	// GlycanPool lists compositions a decoy may carry instead of its
	// target's glycan. Only compositions with the same elemental formula
	// that no target uses are eligible.
	GlycanPool []core.GlycanComposition
}

// Failure records a decoy that could not be built.
type Failure struct {
	Target    *core.Candidate
	Replicate int
	Err       error
}

// Generator builds decoys against a fixed target set. It is safe for
// concurrent use once constructed.
type Generator struct {
	opts          Options
	targetKeys    map[string]struct{}
	targetGlycans map[core.GlycanComposition]struct{}
	isobars       map[core.Composition][]core.GlycanComposition
}

// NewGenerator indexes the target keys used for collision checks.
func NewGenerator(targets []*core.Candidate, opts Options) *Generator {
	if opts.Ratio <= 0 {
		opts.Ratio = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	g := &Generator{
		opts:          opts,
		targetKeys:    make(map[string]struct{}, len(targets)),
		targetGlycans: make(map[core.GlycanComposition]struct{}),
		isobars:       make(map[core.Composition][]core.GlycanComposition),
	}
	for _, t := range targets {
		g.targetKeys[t.Key()] = struct{}{}
		g.targetGlycans[t.Glycan] = struct{}{}
	}
	seen := make(map[core.GlycanComposition]bool)
	for _, gc := range opts.GlycanPool {
		if seen[gc] {
			continue
		}
		seen[gc] = true
		if _, used := g.targetGlycans[gc]; used {
			continue
		}
		comp := gc.Composition()
		g.isobars[comp] = append(g.isobars[comp], gc)
	}
	for comp := range g.isobars {
		pool := g.isobars[comp]
		sort.Slice(pool, func(i, j int) bool { return pool[i].String() < pool[j].String() })
	}
	return g
}

// Options returns the effective settings.
func (g *Generator) Options() Options { return g.opts }

// Generate builds one decoy for target. The first replicate tries the
// interior reversal; later attempts and replicates shuffle the interior
// residues with a PCG stream seeded from (Seed, target ID, replicate).
// The decoy has the target's neutral mass exactly.
func (g *Generator) Generate(target *core.Candidate, replicate, id int) (*core.Candidate, error) {
	rng := rand.New(rand.NewPCG(g.opts.Seed, streamID(target.ID, replicate)))
	glycan := g.substituteGlycan(target.Glycan, rng)

	attempts := g.opts.MaxRetries
	if replicate == 0 {
		attempts++
	}
	for attempt := 0; attempt < attempts; attempt++ {
		var perm []int
		if replicate == 0 && attempt == 0 {
			perm = reversal(len(target.Peptide.Sequence))
		} else {
			perm = shuffle(len(target.Peptide.Sequence), rng)
		}
		peptide := permute(target.Peptide, perm)
		decoy, err := core.NewDecoy(id, target.ID, peptide, glycan)
		if err != nil {
			return nil, err
		}
		if _, collides := g.targetKeys[decoy.Key()]; !collides {
			return decoy, nil
		}
	}
	return nil, &core.DecoyCollisionError{TargetID: target.ID, Attempts: attempts}
}

// GenerateAll builds Ratio decoys for every target, numbering them from
// firstID upward. Collisions are reported per decoy and do not stop the
// run.
func (g *Generator) GenerateAll(targets []*core.Candidate, firstID int) ([]*core.Candidate, []Failure) {
	decoys := make([]*core.Candidate, 0, len(targets)*g.opts.Ratio)
	var failures []Failure
	id := firstID
	for _, t := range targets {
		for r := 0; r < g.opts.Ratio; r++ {
			d, err := g.Generate(t, r, id)
			if err != nil {
				failures = append(failures, Failure{Target: t, Replicate: r, Err: err})
				continue
			}
			decoys = append(decoys, d)
			id++
		}
	}
	return decoys, failures
}

func (g *Generator) substituteGlycan(glycan core.GlycanComposition, rng *rand.Rand) core.GlycanComposition {
	pool := g.isobars[glycan.Composition()]
	if len(pool) == 0 {
		return glycan
	}
	return pool[rng.IntN(len(pool))]
}

func streamID(targetID, replicate int) uint64 {
	return uint64(uint32(targetID))<<32 | uint64(uint32(replicate))
}

// reversal returns the permutation reversing every residue except the
// first and last.
func reversal(n int) []int {
	perm := identity(n)
	for i, j := 1, n-2; i < j; i, j = i+1, j-1 {
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// shuffle permutes the interior residues; the termini stay in place.
func shuffle(n int, rng *rand.Rand) []int {
	perm := identity(n)
	if n > 3 {
		interior := perm[1 : n-1]
		rng.Shuffle(len(interior), func(i, j int) {
			interior[i], interior[j] = interior[j], interior[i]
		})
	}
	return perm
}

func identity(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// permute rebuilds a peptide so that residue perm[i] of p lands at i.
// Residue modifications follow their residue; terminal ones stay put.
func permute(p core.Peptide, perm []int) core.Peptide {
	residues := []byte(p.Sequence)
	out := make([]byte, len(residues))
	newPos := make([]int, len(residues))
	for i, src := range perm {
		out[i] = residues[src]
		newPos[src] = i
	}

	var mods []core.Modification
	if len(p.Modifications) > 0 {
		mods = make([]core.Modification, len(p.Modifications))
		for i, mod := range p.Modifications {
			if mod.Position >= 0 && mod.Position < len(residues) {
				mod.Position = newPos[mod.Position]
			}
			mods[i] = mod
		}
	}
	return core.Peptide{Sequence: string(out), Modifications: mods}
}
