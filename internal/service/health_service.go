package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
)

// HealthService probes every websocket connection on a fixed cadence
// and force-closes the ones that stopped answering. It watches
// connections, not room members, so idle lobby sockets get reaped
// too.
type HealthService struct {
	health repository.HealthRepository
	pool   *workerpool.WorkerPool
	cfg    config.SessionConfig
	log    *slog.Logger
}

func NewHealthService(health repository.HealthRepository, cfg config.SessionConfig, log *slog.Logger) *HealthService {
	if log == nil {
		log = slog.Default()
	}
	workers := cfg.ProbeWorkers
	if workers <= 0 {
		workers = 1
	}
	return &HealthService{
		health: health,
		pool:   workerpool.New(workers),
		cfg:    cfg,
		log:    log,
	}
}

// Track starts watching a connection. The first beat is the moment of
// tracking so fresh connections never look stale.
func (s *HealthService) Track(ctx context.Context, connID string, enqueue func(domain.Event) bool, closeFn func()) {
	now := time.Now().UTC()
	s.health.Put(ctx, &domain.ConnectionHealth{
		ConnID:      connID,
		Name:        domain.AnonymousName,
		ConnectedAt: now,
		LastBeat:    now,
		Enqueue:     enqueue,
		Close:       closeFn,
	})
	s.log.Debug("connection tracked", slog.String("conn_id", connID))
}

// Ack refreshes the beat timestamp. Acks from unknown connections are
// ignored.
func (s *HealthService) Ack(ctx context.Context, connID string) {
	s.health.Touch(ctx, connID, time.Now().UTC())
}

func (s *HealthService) Untrack(ctx context.Context, connID string) {
	s.health.Delete(ctx, connID)
}

// Run drives the probe and sweep tickers until ctx is done.
func (s *HealthService) Run(ctx context.Context) {
	probe := time.NewTicker(s.cfg.HeartbeatInterval)
	sweep := time.NewTicker(s.cfg.HealthSweepInterval)
	defer probe.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-probe.C:
			s.probeAll(ctx)
		case <-sweep.C:
			s.sweepStale(ctx)
		}
	}
}

// Stop drains the worker pool. Call after Run has returned.
func (s *HealthService) Stop() {
	s.pool.StopWait()
}

func (s *HealthService) probeAll(ctx context.Context) {
	sentAt := time.Now().UTC()
	for _, rec := range s.health.All(ctx) {
		if rec.Enqueue == nil {
			continue
		}
		s.pool.Submit(func() {
			rec.Enqueue(domain.Event{
				Name: domain.EventHeartbeat,
				Data: heartbeatPayload{SentAt: sentAt},
			})
		})
	}
}

// sweepStale force-closes connections whose last ack is older than
// the timeout and drops their records right away. The close unwinds
// room state through the gateway's normal disconnect path.
func (s *HealthService) sweepStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.HeartbeatTimeout)
	for _, rec := range s.health.Stale(ctx, cutoff) {
		s.health.Delete(ctx, rec.ConnID)
		s.log.Warn("connection timed out",
			slog.String("conn_id", rec.ConnID),
			slog.String("user_name", rec.Name),
			slog.String("room_code", rec.RoomCode),
			slog.Time("last_beat", rec.LastBeat),
		)
		if rec.Close != nil {
			s.pool.Submit(rec.Close)
		}
	}
}

type heartbeatPayload struct {
	SentAt time.Time `json:"sentAt"`
}
