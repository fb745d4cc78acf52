package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/core"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/score"
	"github.com/BostonUniversityCBMS/Glycresoft/pkg/search"
)

func testReport(t *testing.T) *search.Report {
	t.Helper()
	glycan, err := core.ParseGlycanComposition("{Hex:5; HexNAc:4}")
	require.NoError(t, err)
	target, err := core.NewCandidate(1, core.Peptide{
		Sequence:      "NCTK",
		Modifications: []core.Modification{{Mass: 57.021464, Position: 1}},
	}, glycan)
	require.NoError(t, err)
	decoy, err := core.NewDecoy(2, 1, core.Peptide{Sequence: "NTCK"}, glycan)
	require.NoError(t, err)

	rec := search.IdentificationRecord{
		SpectrumID: "scan=1",
		Candidate:  target,
		Score:      score.Score{Composite: 2.1, Glycan: 0.9, MatchedIons: 14},
		QValue:     0,
		Accepted:   true,
		Charge:     3,
		Signature:  score.Signature{Found: 4, Ratio: 0.2, GScore: 0.5},
	}
	decoyRec := search.IdentificationRecord{
		SpectrumID: "scan=1",
		Candidate:  decoy,
		Score:      score.Score{Composite: 0.7},
		Decoy:      true,
		QValue:     1,
		Charge:     3,
	}
	return &search.Report{
		Records:      []search.IdentificationRecord{rec},
		DecoyRecords: []search.IdentificationRecord{decoyRec},
		Diagnostics: []search.SpectrumDiagnostics{{
			SpectrumID: "scan=1",
			Solutions: search.SolutionSet{
				Solutions: []search.Solution{{Candidate: target, Score: rec.Score}},
				Mean:      2.1,
			},
		}},
		Tally:          search.Tally{search.ReasonNoPrecursorMatch: 3, search.ReasonDecoyCollision: 1},
		Spectra:        4,
		Accepted:       1,
		QThreshold:     0.05,
		ScoreThreshold: 2.1,
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	runID, err := w.WriteReport(testReport(t), RunInfo{
		SpectraFile:    "run.mgf",
		CandidatesFile: "hypothesis.txt",
		Settings:       "workers: 2\n",
		Targets:        1,
		Decoys:         1,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(runID)
	require.NoError(t, err)
	require.NoError(t, w.Finalize())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var created, settings string
	var spectra, accepted int
	err = db.QueryRow(`SELECT CreationDate, Settings, Spectra, Accepted FROM RunTable WHERE RunId = ?`, runID).
		Scan(&created, &settings, &spectra, &accepted)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", created)
	assert.Equal(t, "workers: 2\n", settings)
	assert.Equal(t, 4, spectra)
	assert.Equal(t, 1, accepted)

	rows, err := db.Query(`SELECT Sequence, Glycan, Decoy, QValue, Accepted, MatchedIons FROM IdentificationTable WHERE RunId = ? ORDER BY IdentificationId`, runID)
	require.NoError(t, err)
	defer rows.Close()
	type row struct {
		seq, glycan string
		decoy       bool
		q           float64
		accepted    bool
		matched     int
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.seq, &r.glycan, &r.decoy, &r.q, &r.accepted, &r.matched))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []row{
		{"NC[+57.0215]TK", "{Hex:5; HexNAc:4}", false, 0, true, 14},
		{"NTCK", "{Hex:5; HexNAc:4}", true, 1, false, 0},
	}, got)

	var solutions int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM SolutionTable WHERE RunId = ?`, runID).Scan(&solutions))
	assert.Equal(t, 1, solutions)

	tally := make(map[string]int)
	tallyRows, err := db.Query(`SELECT Reason, Count FROM TallyTable WHERE RunId = ?`, runID)
	require.NoError(t, err)
	defer tallyRows.Close()
	for tallyRows.Next() {
		var reason string
		var n int
		require.NoError(t, tallyRows.Scan(&reason, &n))
		tally[reason] = n
	}
	assert.Equal(t, map[string]int{"no-precursor-match": 3, "decoy-collision": 1}, tally)
}

func TestWriteReportAppendsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Close()

	first, err := w.WriteReport(testReport(t), RunInfo{})
	require.NoError(t, err)
	second, err := w.WriteReport(testReport(t), RunInfo{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	var runs, ids int
	require.NoError(t, w.db.QueryRow(`SELECT COUNT(*) FROM RunTable`).Scan(&runs))
	require.NoError(t, w.db.QueryRow(`SELECT COUNT(*) FROM IdentificationTable`).Scan(&ids))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 4, ids)

	_, err = w.WriteReport(nil, RunInfo{})
	assert.Error(t, err)
}
