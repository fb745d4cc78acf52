// Package fdr estimates q-values by target-decoy competition.
package fdr

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Mode selects how targets and decoys enter the estimate.
type Mode int

const (
	// Competition enters only the better of the best target and the best
	// decoy of each spectrum.
	Competition Mode = iota
	// Separate enters the best target and the best decoy of each spectrum
	// independently.
	Separate
)

func (m Mode) String() string {
	if m == Separate {
		return "separate"
	}
	return "competition"
}

// ParseMode accepts "competition" or "separate".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "competition":
		return Competition, nil
	case "separate":
		return Separate, nil
	}
	return Competition, fmt.Errorf("unknown FDR mode %q (use competition or separate)", s)
}

// Entry is one scored identification in the pool.
type Entry struct {
	Score float64
	Decoy bool
}

// DecoyWins reports whether a decoy scoring decoy beats a target scoring
// target in competition. Equal scores go to the decoy.
func DecoyWins(target, decoy float64) bool {
	return decoy >= target
}

type group struct {
	score float64
	q     float64
}

// Table maps scores to q-values. It is immutable after Estimate.
type Table struct {
	groups  []group // one per distinct score, descending
	qvalues []float64
}

// Estimate computes q-values for a pool of entries. At each distinct score
// the FDR is min(1, D/T) over entries scoring at least that much (1 when no
// target qualifies); the q-value is the smallest FDR at or below that rank.
// A pool with no decoys above a rank gets q = 0 there.
func Estimate(entries []Entry) *Table {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entries[order[a]], entries[order[b]]
		if ea.Score != eb.Score {
			return ea.Score > eb.Score
		}
		return ea.Decoy && !eb.Decoy
	})

	t := &Table{qvalues: make([]float64, len(entries))}
	groupOf := make([]int, len(entries))
	decoys, targets := 0, 0
	for i := 0; i < len(order); {
		score := entries[order[i]].Score
		j := i
		for ; j < len(order) && entries[order[j]].Score == score; j++ {
			if entries[order[j]].Decoy {
				decoys++
			} else {
				targets++
			}
			groupOf[order[j]] = len(t.groups)
		}
		fdr := 1.0
		if targets > 0 {
			fdr = math.Min(1, float64(decoys)/float64(targets))
		}
		t.groups = append(t.groups, group{score: score, q: fdr})
		i = j
	}

	for k := len(t.groups) - 2; k >= 0; k-- {
		t.groups[k].q = math.Min(t.groups[k].q, t.groups[k+1].q)
	}
	for i, g := range groupOf {
		t.qvalues[i] = t.groups[g].q
	}
	return t
}

// QValues returns the q-value of every entry, aligned with the input.
func (t *Table) QValues() []float64 {
	return append([]float64(nil), t.qvalues...)
}

// QValue returns the q-value of accepting every entry scoring at least
// score: that of the lowest pooled score not below it. Scores above the
// whole pool take the top q-value; an empty pool yields 1.
func (t *Table) QValue(score float64) float64 {
	if len(t.groups) == 0 {
		return 1
	}
	k := sort.Search(len(t.groups), func(i int) bool { return t.groups[i].score < score })
	if k == 0 {
		return t.groups[0].q
	}
	return t.groups[k-1].q
}

// Threshold returns the lowest pooled score whose q-value is at most maxQ.
// ok is false when no score qualifies.
func (t *Table) Threshold(maxQ float64) (score float64, ok bool) {
	for k := len(t.groups) - 1; k >= 0; k-- {
		if t.groups[k].q <= maxQ {
			return t.groups[k].score, true
		}
	}
	return 0, false
}

// Len returns the number of pooled entries.
func (t *Table) Len() int { return len(t.qvalues) }
