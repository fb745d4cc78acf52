package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based residue index; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
}

// NTermPosition marks an N-terminal modification.
const NTermPosition = -1

// TotalModMass returns the sum of modification masses. Masses are summed in
// ascending order so permuting the modifications cannot change the result.
func TotalModMass(mods []Modification) float64 {
	if len(mods) == 0 {
		return 0
	}
	masses := make([]float64, len(mods))
	for i, mod := range mods {
		masses[i] = mod.Mass
	}
	sort.Float64s(masses)
	total := 0.0
	for _, m := range masses {
		total += m
	}
	return total
}

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]float64 // name -> mass shift
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,aa])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || lineNum == 1 {
			continue // header
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.mods[strings.ToLower(modName)] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name (case-insensitive)
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[strings.ToLower(name)]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[strings.ToLower(name)] = mass
}

// Len returns the number of known modifications.
func (db *ModDatabase) Len() int {
	return len(db.mods)
}

// Resolve turns a modification token into a mass: either a signed number
// ("+57.021", "-0.984") or a known name.
func (db *ModDatabase) Resolve(token string) (float64, error) {
	token = strings.TrimSpace(token)
	if mass, err := strconv.ParseFloat(token, 64); err == nil {
		return mass, nil
	}
	if mass, ok := db.GetMass(token); ok {
		return mass, nil
	}
	return 0, fmt.Errorf("unknown modification '%s'", token)
}

// DefaultModDatabase returns a ModDatabase pre-loaded with the modifications
// common in glycoproteomics searches.
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// From unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Deamidated", 0.984016)
	db.Add("Phospho", 79.966331)
	db.Add("Dehydrated", -18.010565)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Methyl", 14.01565)
	db.Add("Oxidation", 15.994915)
	db.Add("Dimethyl", 28.0313)
	db.Add("Sulfo", 79.956815)
	db.Add("Propionamide", 71.037114)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMTPro", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)

	return db
}
