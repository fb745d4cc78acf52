// Package mgf provides a streaming reader for Mascot Generic Format peak lists
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Reader provides streaming access to MGF files
type Reader struct {
	scanner     *bufio.Scanner
	source      string
	lineNum     int
	index       int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MGF reader. source is recorded on every spectrum
// as its SourceFile.
func NewReader(r io.Reader, source string) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{
		scanner: scanner,
		source:  source,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll drains the reader.
func (r *Reader) ReadAll() ([]*core.Spectrum, error) {
	var out []*core.Spectrum
	for r.Next() {
		out = append(out, r.Spectrum())
	}
	return out, r.Err()
}

// readSpectrum reads one BEGIN IONS ... END IONS block
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum
	var scans string

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || line[0] == '#' || line[0] == ';' || line[0] == '!' {
			continue
		}

		if spec == nil {
			// global parameters before the first block are ignored
			if strings.EqualFold(line, "BEGIN IONS") {
				r.index++
				spec = &core.Spectrum{
					SourceFile:   r.source,
					SourceFormat: "mgf",
					Peaks:        []core.Peak{},
				}
			}
			continue
		}

		if strings.EqualFold(line, "END IONS") {
			if spec.ID == "" {
				if scans != "" {
					spec.ID = "scan=" + scans
				} else {
					spec.ID = fmt.Sprintf("index=%d", r.index-1)
				}
			}
			spec.SortPeaks()
			return spec, nil
		}

		if key, value, ok := strings.Cut(line, "="); ok && isHeaderKey(key) {
			if err := r.parseHeader(spec, strings.ToUpper(key), strings.TrimSpace(value), &scans); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			continue
		}

		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peaks = append(spec.Peaks, peak)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec != nil {
		return nil, fmt.Errorf("line %d: unterminated BEGIN IONS block", r.lineNum)
	}
	return nil, io.EOF
}

func isHeaderKey(key string) bool {
	if key == "" {
		return false
	}
	c := key[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// parseHeader handles one KEY=value line inside a block
func (r *Reader) parseHeader(spec *core.Spectrum, key, value string, scans *string) error {
	switch key {
	case "TITLE":
		spec.ID = value

	case "PEPMASS":
		// PEPMASS=mz [intensity]
		fields := strings.Fields(value)
		if len(fields) == 0 {
			return fmt.Errorf("empty PEPMASS")
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return fmt.Errorf("invalid PEPMASS '%s': %w", value, err)
		}
		spec.PrecursorMZ = mz

	case "CHARGE":
		charges, err := ParseCharges(value)
		if err != nil {
			return err
		}
		spec.Charges = charges

	case "RTINSECONDS":
		rt, err := strconv.ParseFloat(strings.Fields(value + " ")[0], 64)
		if err == nil {
			spec.RetentionTime = &rt
		}

	case "SCANS":
		*scans = value
		if n, err := strconv.Atoi(strings.SplitN(value, "-", 2)[0]); err == nil {
			spec.ScanNumber = n
		}
	}
	return nil
}

// ParseCharges parses MGF charge lists such as "2+", "2+ and 3+" or "2+,3+".
func ParseCharges(value string) ([]int, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	var charges []int
	for _, f := range fields {
		if strings.EqualFold(f, "and") {
			continue
		}
		z, err := parseCharge(f)
		if err != nil {
			return nil, err
		}
		charges = append(charges, z)
	}
	return charges, nil
}

func parseCharge(s string) (int, error) {
	digits := strings.TrimRight(s, "+")
	if strings.HasSuffix(digits, "-") || strings.HasPrefix(digits, "-") {
		return 0, fmt.Errorf("negative charge '%s' is not supported", s)
	}
	z, err := strconv.Atoi(digits)
	if err != nil || z <= 0 {
		return 0, fmt.Errorf("invalid charge '%s'", s)
	}
	return z, nil
}

// parsePeak parses a single peak line (format: "mz intensity [charge]")
func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}

	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}

	peak := core.Peak{
		MZ:        mz,
		Intensity: intensity,
	}

	if len(fields) >= 3 {
		if z, err := parseCharge(fields[2]); err == nil {
			peak.Charge = z
		}
	}

	return peak, nil
}
