// Package candidates provides a streaming reader for glycopeptide candidate
// lists: one "SEQUENCE {Hex:5; HexNAc:4}" hypothesis per line.
package candidates

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// LineError reports a candidate line that could not be parsed.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Reader provides streaming access to candidate list files
type Reader struct {
	scanner  *bufio.Scanner
	modDB    *core.ModDatabase
	lineNum  int
	nextID   int
	current  *core.Candidate
	rejected []*LineError
	err      error
}

// NewReader creates a new candidate reader. Candidates are numbered from 1
// in file order.
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	return &Reader{
		scanner: bufio.NewScanner(r),
		modDB:   modDB,
		nextID:  1,
	}
}

// Next advances to the next valid candidate. Malformed lines are skipped
// and collected in Rejected. Returns false at end of input or on a read
// error.
func (r *Reader) Next() bool {
	r.current = nil

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		c, err := r.parseLine(line)
		if err != nil {
			r.rejected = append(r.rejected, &LineError{Line: r.lineNum, Text: line, Err: err})
			continue
		}
		r.current = c
		r.nextID++
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = err
	}
	return false
}

// Candidate returns the current candidate
func (r *Reader) Candidate() *core.Candidate {
	return r.current
}

// Rejected returns the lines skipped so far.
func (r *Reader) Rejected() []*LineError {
	return r.rejected
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]*core.Candidate, error) {
	var out []*core.Candidate
	for r.Next() {
		out = append(out, r.Candidate())
	}
	return out, r.Err()
}

func (r *Reader) parseLine(line string) (*core.Candidate, error) {
	seq, rest := line, ""
	if sep := strings.IndexAny(line, " \t"); sep >= 0 {
		seq, rest = line[:sep], line[sep+1:]
	}

	peptide, err := ParseSequence(seq, r.modDB)
	if err != nil {
		return nil, err
	}
	glycan, err := core.ParseGlycanComposition(rest)
	if err != nil {
		return nil, err
	}
	return core.NewCandidate(r.nextID, peptide, glycan)
}

// Pattern to match modifications: optional residue or terminus letter
// followed by [mass] or (Name)
var modPattern = regexp.MustCompile(`([a-zA-Z]?)(\[[^\]]*\]|\([^)]*\))`)

// ParseSequence parses a sequence with inline modifications such as
// "n[+42.0106]PEPC[+57.021]TIDEKc[-0.984]" or "PEPC(Carbamidomethyl)TIDEK".
// Bracketed tokens may be masses or names; both resolve through modDB.
func ParseSequence(raw string, modDB *core.ModDatabase) (core.Peptide, error) {
	var sequence strings.Builder
	var mods []core.Modification
	var cterm []core.Modification

	lastIdx := 0
	for _, match := range modPattern.FindAllStringSubmatchIndex(raw, -1) {
		// Add unmodified sequence before this match
		before := raw[lastIdx:match[0]]
		if len(cterm) > 0 && before != "" {
			return core.Peptide{}, fmt.Errorf("residues after C-terminal modification in '%s'", raw)
		}
		sequence.WriteString(before)

		aa := raw[match[2]:match[3]]
		token := raw[match[4]+1 : match[5]-1]

		mass, err := modDB.Resolve(token)
		if err != nil {
			return core.Peptide{}, fmt.Errorf("in sequence '%s': %w", raw, err)
		}
		name := token
		if strings.HasPrefix(raw[match[4]:], "[") {
			name = ""
		}

		switch aa {
		case "n":
			if sequence.Len() > 0 {
				return core.Peptide{}, fmt.Errorf("N-terminal modification inside sequence '%s'", raw)
			}
			mods = append(mods, core.Modification{Mass: mass, Position: core.NTermPosition, Name: name})
		case "c":
			cterm = append(cterm, core.Modification{Mass: mass, Name: name})
		case "":
			// a bare [mass] modifies the preceding residue
			if sequence.Len() == 0 {
				mods = append(mods, core.Modification{Mass: mass, Position: core.NTermPosition, Name: name})
				break
			}
			mods = append(mods, core.Modification{Mass: mass, Position: sequence.Len() - 1, Name: name})
		default:
			sequence.WriteString(aa)
			mods = append(mods, core.Modification{Mass: mass, Position: sequence.Len() - 1, Name: name})
		}

		lastIdx = match[1]
	}

	// Add remaining sequence
	tail := raw[lastIdx:]
	if len(cterm) > 0 && tail != "" {
		return core.Peptide{}, fmt.Errorf("residues after C-terminal modification in '%s'", raw)
	}
	sequence.WriteString(tail)

	seq := sequence.String()
	if seq == "" {
		return core.Peptide{}, fmt.Errorf("empty sequence")
	}
	if _, err := core.SequenceComposition(seq); err != nil {
		return core.Peptide{}, err
	}
	for _, m := range cterm {
		m.Position = len(seq)
		mods = append(mods, m)
	}
	return core.Peptide{Sequence: seq, Modifications: mods}, nil
}
