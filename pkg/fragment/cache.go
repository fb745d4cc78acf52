package fragment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Cache is a read-only arena of ion lists, one slot per candidate. It is
// filled once by BuildCache and may then be shared by any number of
// goroutines without locking.
type Cache struct {
	slots map[*core.Candidate]int
	ions  [][]Ion
}

// BuildFailure records a candidate whose ions could not be generated.
type BuildFailure struct {
	Candidate *core.Candidate
	Err       error
}

// BuildCache generates ions for every candidate with at most workers
// goroutines. Candidates that fail are left out of the cache and returned
// as failures; only cancellation of ctx fails the whole build.
func BuildCache(ctx context.Context, gen *Generator, candidates []*core.Candidate, workers int) (*Cache, []BuildFailure, error) {
	if workers <= 0 {
		workers = 1
	}

	ions := make([][]Ion, len(candidates))
	errs := make([]error, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ions[i], errs[i] = gen.Generate(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	cache := &Cache{
		slots: make(map[*core.Candidate]int, len(candidates)),
		ions:  make([][]Ion, 0, len(candidates)),
	}
	var failures []BuildFailure
	for i, c := range candidates {
		if errs[i] != nil {
			failures = append(failures, BuildFailure{Candidate: c, Err: errs[i]})
			continue
		}
		cache.slots[c] = len(cache.ions)
		cache.ions = append(cache.ions, ions[i])
	}
	return cache, failures, nil
}

// Ions returns the cached ion list of a candidate.
func (c *Cache) Ions(candidate *core.Candidate) ([]Ion, bool) {
	slot, ok := c.slots[candidate]
	if !ok {
		return nil, false
	}
	return c.ions[slot], true
}

// Len returns the number of cached candidates.
func (c *Cache) Len() int { return len(c.ions) }
