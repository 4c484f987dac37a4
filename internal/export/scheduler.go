package export

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler periodically archives one session's transcript to one or more
// destinations while the session is being followed.
type Scheduler struct {
	src          HistorySource
	sessionID    string
	destinations []Destination
	interval     time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports sessionID from src to the
// given destinations at the specified interval.
func NewScheduler(src HistorySource, sessionID string, destinations []Destination, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		src:          src,
		sessionID:    sessionID,
		destinations: destinations,
		interval:     interval,
		clock:        clock,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler, waits for the current export (if any) to
// finish, then runs a final export so the archive includes the tail of the
// session.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.Once(context.Background())
}

func (s *Scheduler) run(ctx context.Context) {
	s.Once(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Once(ctx)
		}
	}
}

// Once exports the transcript to every destination. Failures are logged.
func (s *Scheduler) Once(ctx context.Context) {
	var buf bytes.Buffer
	if err := Transcript(ctx, s.src, s.sessionID, &buf); err != nil {
		s.logger.Error("transcript export failed", "session", s.sessionID, "err", err)
		return
	}
	data := buf.Bytes()
	name := ObjectName(s.sessionID)

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, name, data); err != nil {
			s.logger.Error("transcript destination write failed", "destination", i, "err", err)
		}
	}

	s.logger.Debug("transcript exported", "session", s.sessionID, "destinations", len(s.destinations), "bytes", len(data))
}
