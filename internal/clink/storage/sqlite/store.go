package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/clinkcode/internal/clink/pipeline"
	"github.com/banshee-data/clinkcode/internal/timeutil"
)

// Run is one decode session.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	Source     string
	ConfigJSON string
}

// Detection is one accepted marker as stored.
type Detection struct {
	ID       int64
	FrameID  uuid.UUID
	Seq      uint64
	Code     int32
	Diagonal int
	Rotated  bool
	CenterX  float64
	CenterY  float64
	// Corners in TL, TR, BL, BR order.
	Corners [4][2]float64
}

// RunSummary aggregates the frames of one run.
type RunSummary struct {
	Frames        int
	Skipped       int
	Markers       int
	MeanElapsedUs float64
}

// Store is the detection log.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (or creates) the database at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Writes are serialised through a single connection.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database, applying pending migrations.
func NewStore(db *sql.DB) (*Store, error) {
	if err := migrateUp(db); err != nil {
		return nil, err
	}
	return &Store{db: db, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used to stamp runs.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion() (uint, bool, error) {
	return migrateVersion(s.db)
}

// StartRun records a new run and returns it.
func (s *Store) StartRun(source, configJSON string) (Run, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	r := Run{ID: uuid.New(), StartedAt: s.clock.Now(), Source: source, ConfigJSON: configJSON}
	_, err := s.db.Exec(`INSERT INTO clink_runs (run_id, started_at, source, config_json) VALUES (?, ?, ?, ?)`,
		r.ID.String(), r.StartedAt.UnixNano(), r.Source, r.ConfigJSON)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(id uuid.UUID) (Run, error) {
	var (
		r       Run
		rawID   string
		started int64
	)
	err := s.db.QueryRow(`SELECT run_id, started_at, source, config_json FROM clink_runs WHERE run_id = ?`, id.String()).
		Scan(&rawID, &started, &r.Source, &r.ConfigJSON)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	if r.ID, err = uuid.Parse(rawID); err != nil {
		return Run{}, fmt.Errorf("parse run id: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	return r, nil
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, started_at, source, config_json FROM clink_runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			rawID   string
			started int64
		)
		if err := rows.Scan(&rawID, &started, &r.Source, &r.ConfigJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordFrame stores a frame summary and its markers in one transaction.
func (s *Store) RecordFrame(runID uuid.UUID, f pipeline.Frame, res pipeline.FrameResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var captured int64
	if !f.Captured.IsZero() {
		captured = f.Captured.UnixNano()
	}
	_, err = tx.Exec(`INSERT INTO clink_frames
		(frame_id, run_id, seq, captured_at, skipped, board_detected, tag_count, candidates, marker_count, elapsed_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.FrameID.String(), runID.String(), int64(f.Seq), captured,
		boolInt(res.Skipped), boolInt(res.BoardDetected), res.TagCount, res.Candidates,
		len(res.Markers), res.Elapsed.Microseconds())
	if err != nil {
		return fmt.Errorf("insert frame: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO clink_detections
		(frame_id, code, diagonal, rotated, center_x, center_y, tl_x, tl_y, tr_x, tr_y, bl_x, bl_y, br_x, br_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare detection insert: %w", err)
	}
	defer stmt.Close()
	for _, m := range res.Markers {
		_, err := stmt.Exec(res.FrameID.String(), m.Code, m.Diagonal, boolInt(m.Rotated),
			m.Center.X, m.Center.Y,
			m.TopLeft.X, m.TopLeft.Y, m.TopRight.X, m.TopRight.Y,
			m.BottomLeft.X, m.BottomLeft.Y, m.BottomRight.X, m.BottomRight.Y)
		if err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return tx.Commit()
}

// Sink returns a pipeline sink recording every frame under runID.
func (s *Store) Sink(runID uuid.UUID) pipeline.Sink {
	return pipeline.SinkFunc(func(f pipeline.Frame, res pipeline.FrameResult) error {
		return s.RecordFrame(runID, f, res)
	})
}

// ListDetections returns a run's detections in frame order.
func (s *Store) ListDetections(runID uuid.UUID) ([]Detection, error) {
	rows, err := s.db.Query(`SELECT d.detection_id, d.frame_id, f.seq, d.code, d.diagonal, d.rotated,
			d.center_x, d.center_y, d.tl_x, d.tl_y, d.tr_x, d.tr_y, d.bl_x, d.bl_y, d.br_x, d.br_y
		FROM clink_detections d JOIN clink_frames f ON f.frame_id = d.frame_id
		WHERE f.run_id = ?
		ORDER BY f.seq, d.detection_id`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var (
			d       Detection
			frameID string
			seq     int64
			rotated int
		)
		if err := rows.Scan(&d.ID, &frameID, &seq, &d.Code, &d.Diagonal, &rotated,
			&d.CenterX, &d.CenterY,
			&d.Corners[0][0], &d.Corners[0][1], &d.Corners[1][0], &d.Corners[1][1],
			&d.Corners[2][0], &d.Corners[2][1], &d.Corners[3][0], &d.Corners[3][1]); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		if d.FrameID, err = uuid.Parse(frameID); err != nil {
			return nil, fmt.Errorf("parse frame id: %w", err)
		}
		d.Seq = uint64(seq)
		d.Rotated = rotated != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// CodeCounts returns how many times each code was detected in a run.
func (s *Store) CodeCounts(runID uuid.UUID) (map[int32]int, error) {
	rows, err := s.db.Query(`SELECT d.code, COUNT(*)
		FROM clink_detections d JOIN clink_frames f ON f.frame_id = d.frame_id
		WHERE f.run_id = ?
		GROUP BY d.code`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query code counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int32]int)
	for rows.Next() {
		var code int32
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scan code count: %w", err)
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

// Summarize aggregates a run's frames.
func (s *Store) Summarize(runID uuid.UUID) (RunSummary, error) {
	var (
		sum  RunSummary
		mean sql.NullFloat64
	)
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(skipped), 0), COALESCE(SUM(marker_count), 0), AVG(elapsed_us)
		FROM clink_frames WHERE run_id = ?`, runID.String()).
		Scan(&sum.Frames, &sum.Skipped, &sum.Markers, &mean)
	if err != nil {
		return RunSummary{}, fmt.Errorf("summarize run: %w", err)
	}
	sum.MeanElapsedUs = mean.Float64
	return sum, nil
}
