package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fbxdash/backend/fbxd/internal/freebox"
)

// Sampler polls the appliance for connection rates and temperatures while a
// session is live and records them into the Store. A failed tick is skipped,
// never fatal.
type Sampler struct {
	logger   zerolog.Logger
	client   *freebox.Client
	session  *freebox.Session
	detector *freebox.Detector
	store    *Store
	interval time.Duration
}

func NewSampler(logger zerolog.Logger, client *freebox.Client, session *freebox.Session, detector *freebox.Detector, store *Store, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sampler{
		logger:   logger.With().Str("component", "stats-sampler").Logger(),
		client:   client,
		session:  session,
		detector: detector,
		store:    store,
		interval: interval,
	}
}

// Run samples until ctx ends.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.session.IsLoggedIn() {
				s.sample(ctx)
			}
		}
	}
}

func (s *Sampler) sample(ctx context.Context) {
	now := time.Now()

	if res := s.client.Call(ctx, http.MethodGet, "connection/", nil, true); res.Success {
		var conn struct {
			RateUp   float64 `json:"rate_up"`
			RateDown float64 `json:"rate_down"`
		}
		if err := res.Decode(&conn); err == nil {
			_ = s.store.Record("rate_up", now, conn.RateUp)
			_ = s.store.Record("rate_down", now, conn.RateDown)
		}
	} else {
		s.logger.Debug().Str("code", res.ErrorCode).Msg("connection sample skipped")
	}

	caps := s.detector.DetectModel(ctx)
	if res := s.client.Call(ctx, http.MethodGet, "system/", nil, true); res.Success {
		var sensors map[string]json.RawMessage
		if err := res.Decode(&sensors); err == nil {
			for _, field := range caps.TempFields {
				var v float64
				if raw, ok := sensors[field]; ok && json.Unmarshal(raw, &v) == nil {
					_ = s.store.Record(field, now, v)
				}
			}
		}
	}
}
