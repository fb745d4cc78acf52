// Package msp provides a streaming reader for MSP (NIST text) spectra
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
)

// Reader provides streaming access to MSP format files. Entries are
// "Key: value" headers followed by "Num peaks: N" and N peak lines.
type Reader struct {
	scanner     *bufio.Scanner
	source      string
	lineNum     int
	index       int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MSP reader. source is recorded on every spectrum
// as its SourceFile.
func NewReader(r io.Reader, source string) *Reader {
	return &Reader{
		scanner: bufio.NewScanner(r),
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

// readSpectrum reads a single entry from the MSP file
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	var spec *core.Spectrum
	numPeaks := -1

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip empty lines between entries
		if line == "" || line[0] == '#' {
			continue
		}

		if numPeaks < 0 {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: expected 'Key: value', got '%s'", r.lineNum, line)
			}
			if spec == nil {
				r.index++
				spec = &core.Spectrum{
					SourceFile:   r.source,
					SourceFormat: "msp",
					Peaks:        []core.Peak{},
				}
			}
			n, err := r.parseHeader(spec, strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			if n >= 0 {
				numPeaks = n
				if numPeaks == 0 {
					return r.finish(spec), nil
				}
			}
			continue
		}

		// Parse peak line
		peak, err := parsePeak(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
		}
		spec.Peaks = append(spec.Peaks, peak)
		if len(spec.Peaks) >= numPeaks {
			return r.finish(spec), nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec != nil {
		return nil, fmt.Errorf("line %d: entry ended after %d of %d peaks", r.lineNum, len(spec.Peaks), max(numPeaks, 0))
	}
	return nil, io.EOF
}

func (r *Reader) finish(spec *core.Spectrum) *core.Spectrum {
	if spec.ID == "" {
		spec.ID = fmt.Sprintf("index=%d", r.index-1)
	}
	spec.SortPeaks()
	return spec
}

// parseHeader applies one header line. It returns the peak count for the
// "Num peaks" header and -1 otherwise.
func (r *Reader) parseHeader(spec *core.Spectrum, key, value string) (int, error) {
	switch key {
	case "name":
		spec.ID = value
		// library style "SEQUENCE/CHARGE" names carry the charge
		if i := strings.LastIndex(value, "/"); i >= 0 && len(spec.Charges) == 0 {
			if z, err := strconv.Atoi(value[i+1:]); err == nil && z > 0 {
				spec.Charges = []int{z}
			}
		}

	case "precursormz", "precursor_mz", "pepmass":
		mz, err := strconv.ParseFloat(strings.Fields(value + " ")[0], 64)
		if err != nil {
			return -1, fmt.Errorf("invalid precursor m/z '%s': %w", value, err)
		}
		spec.PrecursorMZ = mz

	case "charge", "precursor_charge":
		z, err := strconv.Atoi(strings.TrimRight(value, "+"))
		if err != nil || z <= 0 {
			return -1, fmt.Errorf("invalid charge '%s'", value)
		}
		spec.Charges = []int{z}

	case "retentiontime", "rt":
		if rt, err := strconv.ParseFloat(value, 64); err == nil {
			spec.RetentionTime = &rt
		}

	case "scan", "scannumber":
		if n, err := strconv.Atoi(value); err == nil {
			spec.ScanNumber = n
		}

	case "comment":
		parseComment(spec, value)

	case "num peaks":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return -1, fmt.Errorf("invalid num peaks '%s'", value)
		}
		return n, nil
	}
	return -1, nil
}

// parseComment fills fields the headers left unset from Comment key=value
// pairs (example: Parent=414.71 Charge=3 RetentionTime=1834.2 Scan=1234).
func parseComment(spec *core.Spectrum, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil && spec.PrecursorMZ == 0 {
				spec.PrecursorMZ = mz
			}

		case "Charge":
			if z, err := strconv.Atoi(value); err == nil && z > 0 && len(spec.Charges) == 0 {
				spec.Charges = []int{z}
			}

		case "RetentionTime", "RT":
			if rt, err := strconv.ParseFloat(value, 64); err == nil && spec.RetentionTime == nil {
				spec.RetentionTime = &rt
			}

		case "Scan":
			if n, err := strconv.Atoi(value); err == nil && spec.ScanNumber == 0 {
				spec.ScanNumber = n
			}
		}
	}
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"").
// Annotations are ignored.
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

	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
