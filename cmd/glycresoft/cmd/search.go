package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/reader/candidates"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/reader/mgf"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/reader/msp"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/search"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/writer/sqlite"
)

var (
	// Flags for search command
	spectraFile    string
	spectraFormat  string
	candidatesFile string
	outputFile     string
	modsCSV        string
	glycanPoolFile string
	metricsFile    string
)

func init() {
	searchCmd.Flags().StringVarP(&spectraFile, "spectra", "s", "", "MGF or MSP peak list (required)")
	searchCmd.Flags().StringVarP(&spectraFormat, "from", "f", "", "Spectra format: mgf or msp (auto-detect if not specified)")
	searchCmd.Flags().StringVarP(&candidatesFile, "candidates", "c", "", "Candidate list, one 'SEQUENCE {glycan}' per line (required)")
	searchCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	searchCmd.Flags().StringVar(&modsCSV, "mods", "", "Extra modifications CSV (mod,massshift)")
	searchCmd.Flags().StringVar(&glycanPoolFile, "glycan-pool", "", "Glycan compositions available for decoy substitution, one per line")
	searchCmd.Flags().StringVar(&metricsFile, "metrics", "", "Write Prometheus metrics in text format to this file")
	addSettingsFlags(searchCmd.Flags())

	searchCmd.MarkFlagRequired("spectra")
	searchCmd.MarkFlagRequired("candidates")
	searchCmd.MarkFlagRequired("out")
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Identify glycopeptides in a peak list",
	Long: `Score every spectrum against the candidate list and its decoys, estimate
q-values and write the identifications to a SQLite database.

Examples:
  # Search with default settings
  glycresoft search -s run.mgf -c hypothesis.txt -o results.db

  # MSP peak list with an unrecognised extension
  glycresoft search -s run.txt -f msp -c hypothesis.txt -o results.db

  # Tighter tolerances and separate decoy pooling
  glycresoft search -s run.mgf -c hypothesis.txt -o results.db \
    --precursor-ppm 5 --fragment-tolerance 10 --fdr-mode separate`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	modDB, err := loadModDatabase(modsCSV)
	if err != nil {
		return err
	}

	pool, rejected, err := readCandidates(candidatesFile, modDB, logger)
	if err != nil {
		return err
	}
	spectra, err := readSpectra(spectraFile, spectraFormat)
	if err != nil {
		return err
	}

	fmt.Printf("Searching %s against %s...\n", spectraFile, candidatesFile)
	fmt.Printf("Spectra: %d\n", len(spectra))
	fmt.Printf("Candidates: %d\n", len(pool))
	if n := rejected.Total(); n > 0 {
		fmt.Printf("Rejected candidates: %d\n", n)
	}
	fmt.Printf("Precursor tolerance: %.1f ppm\n", cfg.Precursor.PPM)
	fmt.Printf("Fragment tolerance: %g %s\n", cfg.Fragment.Tolerance, cfg.Fragment.Unit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	opts := []search.Option{
		search.WithLogger(logger),
		search.WithMetrics(search.NewMetrics(reg)),
		search.WithRejected(rejected),
	}
	if glycanPoolFile != "" {
		glycans, err := readGlycanPool(glycanPoolFile)
		if err != nil {
			return err
		}
		opts = append(opts, search.WithGlycanPool(glycans))
	}

	engine, err := search.NewEngine(ctx, cfg, pool, opts...)
	if err != nil {
		return err
	}

	report, err := engine.Run(ctx, spectra)
	if err != nil {
		return fmt.Errorf("search interrupted: %w", err)
	}

	var settings bytes.Buffer
	if err := cfg.Write(&settings); err != nil {
		return err
	}

	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	runID, err := writer.WriteReport(report, sqlite.RunInfo{
		SpectraFile:    spectraFile,
		CandidatesFile: candidatesFile,
		Settings:       settings.String(),
		Targets:        engine.Targets(),
		Decoys:         engine.Decoys(),
	})
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	fmt.Printf("\nSearch complete!\n")
	fmt.Printf("Run: %s\n", runID)
	fmt.Printf("Identified: %d spectra\n", len(report.Records))
	fmt.Printf("Accepted: %d at q <= %g", report.Accepted, report.QThreshold)
	if report.Accepted > 0 {
		fmt.Printf(" (score >= %.4f)", report.ScoreThreshold)
	}
	fmt.Println()
	if total := report.Tally.Total(); total > 0 {
		fmt.Printf("Skipped: %d\n", total)
		for _, reason := range report.Tally.Reasons() {
			fmt.Printf("  %s: %d\n", reason, report.Tally[reason])
		}
	}
	fmt.Printf("Output: %s\n", outputFile)

	return nil
}

// loadModDatabase extends the built-in modifications with a CSV file.
func loadModDatabase(path string) (*core.ModDatabase, error) {
	modDB := core.DefaultModDatabase()
	if path == "" {
		return modDB, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modifications file: %w", err)
	}
	defer f.Close()
	if err := modDB.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return modDB, nil
}

// readCandidates loads the candidate list. Rejected lines are logged and
// counted by reason.
func readCandidates(path string, modDB *core.ModDatabase, logger *slog.Logger) ([]*core.Candidate, search.Tally, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open candidates file: %w", err)
	}
	defer f.Close()

	reader := candidates.NewReader(f, modDB)
	pool, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading candidates file: %w", err)
	}
	rejected := make(search.Tally)
	for _, rej := range reader.Rejected() {
		reason := search.CandidateReason(rej.Err)
		rejected.Add(reason, 1)
		logger.Warn("skipping candidate", "file", path, "line", rej.Line, "reason", reason, "text", rej.Text, "err", rej.Err)
	}
	if len(pool) == 0 {
		return nil, rejected, fmt.Errorf("no valid candidates in %s", path)
	}
	return pool, rejected, nil
}

// readSpectra loads a peak list, detecting the format from the file
// extension when format is empty.
func readSpectra(path, format string) ([]*core.Spectrum, error) {
	if format == "" {
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".mgf":
			format = "mgf"
		case ".msp":
			format = "msp"
		default:
			return nil, fmt.Errorf("cannot auto-detect format from extension '%s', please specify --from", ext)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectra file: %w", err)
	}
	defer f.Close()

	var spectra []*core.Spectrum
	switch strings.ToLower(format) {
	case "mgf":
		spectra, err = mgf.NewReader(f, path).ReadAll()
	case "msp":
		spectra, err = msp.NewReader(f, path).ReadAll()
	default:
		return nil, fmt.Errorf("invalid spectra format '%s', must be mgf or msp", format)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading spectra file: %w", err)
	}
	return spectra, nil
}

// readGlycanPool reads one glycan composition per line; '#' starts a comment.
func readGlycanPool(path string) ([]core.GlycanComposition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glycan pool: %w", err)
	}
	defer f.Close()

	var pool []core.GlycanComposition
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := core.ParseGlycanComposition(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNum, err)
		}
		pool = append(pool, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading glycan pool: %w", err)
	}
	return pool, nil
}
