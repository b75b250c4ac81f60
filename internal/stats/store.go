package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Point is one value of a series.
type Point struct {
	TS    int64   `json:"ts"`
	Value float64 `json:"value"`
}

// Store keeps sampled appliance metrics in sqlite for the dashboard charts.
// A daily cron job prunes rows older than the retention window.
type Store struct {
	logger    zerolog.Logger
	db        *sql.DB
	retention time.Duration
	cron      *cron.Cron
	mu        sync.Mutex
}

// NewStore opens (or creates) the history database under dataDir.
func NewStore(logger zerolog.Logger, dataDir string, retention time.Duration) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "stats.db"))
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS samples (
		metric TEXT NOT NULL,
		ts INTEGER NOT NULL,
		value REAL NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create samples table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_samples_metric_ts ON samples (metric, ts)`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		logger:    logger.With().Str("component", "stats-store").Logger(),
		db:        db,
		retention: retention,
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@daily", s.prune); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.cron.Start()
	return s, nil
}

// Record appends one sample.
func (s *Store) Record(metric string, ts time.Time, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO samples (metric, ts, value) VALUES (?, ?, ?)`, metric, ts.Unix(), value)
	return err
}

// Series returns averaged points for metric since the given time, bucketed so
// that at most maxPoints are returned.
func (s *Store) Series(metric string, since time.Time, maxPoints int) ([]Point, error) {
	if maxPoints <= 0 {
		maxPoints = 360
	}
	window := time.Since(since)
	bucket := int64(window.Seconds()) / int64(maxPoints)
	if bucket < 1 {
		bucket = 1
	}
	rows, err := s.db.Query(
		`SELECT (ts / ?) * ? AS bucket, AVG(value)
		 FROM samples WHERE metric = ? AND ts >= ?
		 GROUP BY bucket ORDER BY bucket`,
		bucket, bucket, metric, since.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.TS, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) prune() {
	cutoff := time.Now().Add(-s.retention).Unix()
	res, err := s.db.Exec(`DELETE FROM samples WHERE ts < ?`, cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("prune failed")
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info().Int64("rows", n).Msg("pruned old samples")
	}
}

// Close stops the pruning job and closes the database.
func (s *Store) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.db.Close()
}
