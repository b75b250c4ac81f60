package stats

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(zerolog.Nop(), t.TempDir(), 24*time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndSeries(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 30; i++ {
		if err := s.Record("rate_down", base.Add(time.Duration(i)*time.Second), float64(i)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	pts, err := s.Series("rate_down", base.Add(-time.Second), 360)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(pts) == 0 {
		t.Fatal("no points returned")
	}
	// other metrics do not leak into the series
	pts, err = s.Series("rate_up", base, 360)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 0 {
		t.Fatalf("unexpected points for empty metric: %d", len(pts))
	}
}

func TestSeriesBucketsToMaxPoints(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3600; i += 10 {
		if err := s.Record("rate_up", base.Add(time.Duration(i)*time.Second), 1); err != nil {
			t.Fatal(err)
		}
	}
	pts, err := s.Series("rate_up", base, 60)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) == 0 || len(pts) > 62 {
		t.Fatalf("expected roughly 60 buckets, got %d", len(pts))
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour)
	if err := s.Record("rate_up", old, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Record("rate_up", time.Now(), 2); err != nil {
		t.Fatal(err)
	}
	s.prune()
	pts, err := s.Series("rate_up", time.Now().Add(-72*time.Hour), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 1 {
		t.Fatalf("expected only the fresh sample after prune, got %d", len(pts))
	}
}
