// Package sqlite provides SQLite storage for search results
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/search"
)

// Date format for RunTable (ISO 8601)
const runDateFormat = time.RFC3339

// RunInfo describes the inputs of one search run.
type RunInfo struct {
	SpectraFile    string
	CandidatesFile string
	Settings       string // YAML rendering of the effective configuration
	Targets        int
	Decoys         int
}

// Writer handles writing search reports to SQLite database files. One file
// may hold several runs, keyed by RunId.
type Writer struct {
	db         *sql.DB
	outputPath string
	now        func() time.Time
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		now:        time.Now,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		CreationDate TEXT,
		SpectraFile TEXT,
		CandidatesFile TEXT,
		Settings TEXT,
		Spectra INTEGER,
		Targets INTEGER,
		Decoys INTEGER,
		Accepted INTEGER,
		QThreshold DOUBLE,
		ScoreThreshold DOUBLE
	);

	CREATE TABLE IF NOT EXISTS IdentificationTable (
		IdentificationId INTEGER PRIMARY KEY AUTOINCREMENT,
		RunId TEXT REFERENCES RunTable(RunId),
		SpectrumId TEXT,
		CandidateId INTEGER,
		SourceId INTEGER,
		Decoy BOOL,
		Sequence TEXT,
		Glycan TEXT,
		NeutralMass DOUBLE,
		Charge INTEGER,
		IsotopeOffset INTEGER,
		PrecursorErrorPPM DOUBLE,
		Composite DOUBLE,
		PeptideScore DOUBLE,
		GlycanScore DOUBLE,
		MassAccuracy DOUBLE,
		BackboneCoverage DOUBLE,
		OxoniumCoverage DOUBLE,
		StubCoverage DOUBLE,
		Binomial DOUBLE,
		MatchedIons INTEGER,
		MeanAbsPPM DOUBLE,
		QValue DOUBLE,
		Accepted BOOL,
		OxoniumRatio DOUBLE,
		GScore DOUBLE
	);

	CREATE TABLE IF NOT EXISTS SolutionTable (
		RunId TEXT REFERENCES RunTable(RunId),
		SpectrumId TEXT,
		Rank INTEGER,
		CandidateId INTEGER,
		Sequence TEXT,
		Glycan TEXT,
		Composite DOUBLE,
		GlycanScore DOUBLE,
		SetMean DOUBLE,
		SetVariance DOUBLE
	);

	CREATE TABLE IF NOT EXISTS TallyTable (
		RunId TEXT REFERENCES RunTable(RunId),
		Reason TEXT,
		Count INTEGER
	);

	CREATE INDEX IF NOT EXISTS IdentificationSpectrum ON IdentificationTable (RunId, SpectrumId);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// WriteReport stores a completed report in a single transaction and returns
// the identifier of the new run.
func (w *Writer) WriteReport(report *search.Report, info RunInfo) (string, error) {
	if report == nil {
		return "", fmt.Errorf("nil report")
	}
	runID := uuid.NewString()

	tx, err := w.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO RunTable (
			RunId, CreationDate, SpectraFile, CandidatesFile, Settings,
			Spectra, Targets, Decoys, Accepted, QThreshold, ScoreThreshold
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		w.now().UTC().Format(runDateFormat),
		info.SpectraFile,
		info.CandidatesFile,
		info.Settings,
		report.Spectra,
		info.Targets,
		info.Decoys,
		report.Accepted,
		report.QThreshold,
		report.ScoreThreshold,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := writeIdentifications(tx, runID, report); err != nil {
		return "", err
	}
	if err := writeSolutions(tx, runID, report.Diagnostics); err != nil {
		return "", err
	}
	if err := writeTally(tx, runID, report.Tally); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run %s: %w", runID, err)
	}
	return runID, nil
}

func writeIdentifications(tx *sql.Tx, runID string, report *search.Report) error {
	stmt, err := tx.Prepare(`
		INSERT INTO IdentificationTable (
			RunId, SpectrumId, CandidateId, SourceId, Decoy, Sequence, Glycan,
			NeutralMass, Charge, IsotopeOffset, PrecursorErrorPPM, Composite,
			PeptideScore, GlycanScore, MassAccuracy, BackboneCoverage,
			OxoniumCoverage, StubCoverage, Binomial, MatchedIons, MeanAbsPPM,
			QValue, Accepted, OxoniumRatio, GScore
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare identification statement: %w", err)
	}
	defer stmt.Close()

	for _, records := range [][]search.IdentificationRecord{report.Records, report.DecoyRecords} {
		for _, rec := range records {
			c := rec.Candidate
			s := rec.Score
			_, err := stmt.Exec(
				runID,
				rec.SpectrumID,
				c.ID,
				c.SourceID,
				rec.Decoy,
				c.Peptide.String(),
				c.Glycan.String(),
				c.NeutralMass(),
				rec.Charge,
				rec.IsotopeOffset,
				rec.PrecursorErrorPPM,
				s.Composite,
				s.Peptide,
				s.Glycan,
				s.MassAccuracy,
				s.BackboneCoverage,
				s.OxoniumCoverage,
				s.StubCoverage,
				s.Binomial,
				s.MatchedIons,
				s.MeanAbsPPM,
				rec.QValue,
				rec.Accepted,
				rec.Signature.Ratio,
				rec.Signature.GScore,
			)
			if err != nil {
				return fmt.Errorf("failed to insert identification for %s: %w", rec.SpectrumID, err)
			}
		}
	}
	return nil
}

func writeSolutions(tx *sql.Tx, runID string, diagnostics []search.SpectrumDiagnostics) error {
	if len(diagnostics) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO SolutionTable (
			RunId, SpectrumId, Rank, CandidateId, Sequence, Glycan,
			Composite, GlycanScore, SetMean, SetVariance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare solution statement: %w", err)
	}
	defer stmt.Close()

	for _, diag := range diagnostics {
		set := diag.Solutions
		for rank, sol := range set.Solutions {
			_, err := stmt.Exec(
				runID,
				diag.SpectrumID,
				rank+1,
				sol.Candidate.ID,
				sol.Candidate.Peptide.String(),
				sol.Candidate.Glycan.String(),
				sol.Score.Composite,
				sol.Score.Glycan,
				set.Mean,
				set.Variance,
			)
			if err != nil {
				return fmt.Errorf("failed to insert solution for %s: %w", diag.SpectrumID, err)
			}
		}
	}
	return nil
}

func writeTally(tx *sql.Tx, runID string, tally search.Tally) error {
	for _, reason := range tally.Reasons() {
		_, err := tx.Exec(`INSERT INTO TallyTable (RunId, Reason, Count) VALUES (?, ?, ?)`,
			runID, string(reason), tally[reason])
		if err != nil {
			return fmt.Errorf("failed to insert tally %s: %w", reason, err)
		}
	}
	return nil
}

// Finalize closes the database
func (w *Writer) Finalize() error {
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
