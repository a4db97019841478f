package keepalive

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires the prober on a constant interval. A firing that comes while the
// previous probe is still running is skipped, so at most one probe is in flight.
// Probe failures are logged and otherwise ignored.
type Scheduler struct {
	cron    *cron.Cron
	job     cron.Job
	prober  *Prober
	timeout time.Duration
	l       *slog.Logger
}

func NewScheduler(p *Prober, interval, timeout time.Duration, l *slog.Logger) *Scheduler {
	cl := cronLogger{l: l}

	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl)),
		prober:  p,
		timeout: timeout,
		l:       l,
	}

	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(s.probe))
	s.cron.Schedule(cron.Every(interval), s.job)

	return s
}

func (s *Scheduler) Start() {
	s.l.Info("Starting keep-alive probes of " + s.prober.Url)
	s.cron.Start()
}

// Stop prevents further firings and waits for a running probe, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.prober.Probe(ctx); err != nil {
		s.l.Warn("Keep-alive probe failed: " + err.Error())
		return
	}

	s.l.Debug("Keep-alive probe succeeded", slog.Duration("took", time.Since(start)))
}

// cronLogger adapts slog to cron's logr-style logger. Info is chatty (every tick), keep it at debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg+": "+err.Error(), keysAndValues...)
}
