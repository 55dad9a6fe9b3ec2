package evaluation

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	command    TEXT NOT NULL,
	archive    TEXT NOT NULL,
	member     TEXT NOT NULL,
	output     TEXT NOT NULL,
	voe        REAL,
	rvd        REAL,
	dice       REAL,
	jaccard    REAL,
	assd       REAL,
	elapsed_ms INTEGER NOT NULL
);
`

// Run describes one pipeline execution. Scores is nil when the run had no
// reference annotation to compare against.
type Run struct {
	ID      string
	Started time.Time
	Command string
	Archive string
	Member  string
	Output  string
	Scores  *Metrics
	Elapsed time.Duration
}

// Store keeps a history of pipeline runs in a local sqlite database, so
// parameter tweaks can be compared across scans without re-running them.
type Store struct {
	*sql.DB
}

// OpenStore opens the database at path, creating it and its schema when
// missing.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run store schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// SaveRun appends one run to the history.
func (s *Store) SaveRun(run Run) error {
	var voe, rvd, dice, jaccard, assd any
	if run.Scores != nil {
		voe = run.Scores.VOE
		rvd = run.Scores.RVD
		dice = run.Scores.Dice
		jaccard = run.Scores.Jaccard
		assd = run.Scores.ASSD
	}

	_, err := s.Exec(`INSERT INTO runs
		(id, started_at, command, archive, member, output, voe, rvd, dice, jaccard, assd, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Started.UTC().Format(time.RFC3339Nano),
		run.Command, run.Archive, run.Member, run.Output,
		voe, rvd, dice, jaccard, assd, run.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	rows, err := s.Query(`SELECT id, started_at, command, archive, member, output,
		voe, rvd, dice, jaccard, assd, elapsed_ms
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started string
		var voe, rvd, dice, jaccard, assd sql.NullFloat64
		var elapsedMs int64
		if err := rows.Scan(&run.ID, &started, &run.Command, &run.Archive, &run.Member, &run.Output,
			&voe, &rvd, &dice, &jaccard, &assd, &elapsedMs); err != nil {
			return nil, fmt.Errorf("reading run row: %w", err)
		}
		run.Started, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parsing run timestamp %q: %w", started, err)
		}
		run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if voe.Valid {
			run.Scores = &Metrics{
				VOE:     voe.Float64,
				RVD:     rvd.Float64,
				Dice:    dice.Float64,
				Jaccard: jaccard.Float64,
				ASSD:    assd.Float64,
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
