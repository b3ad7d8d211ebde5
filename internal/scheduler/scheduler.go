// Package scheduler drives periodic report runs in daemon mode. It wraps a
// single cron entry around the delivery job and guards against overlapping
// runs when a job outlives its interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"reportbot/pkg/logx"
)

type Config struct {
	Enabled bool
	// Spec is a cron expression: standard 5-field, 6-field with a leading
	// seconds column, or a descriptor like "@every 6h" / "@daily".
	Spec     string
	Timezone string // IANA TZ, e.g. "America/Lima"
	// RunTimeout bounds one job execution. 0 means no limit.
	RunTimeout time.Duration
}

// Job is one scheduled report run.
type Job func(ctx context.Context) error

type RunRecord struct {
	Started  time.Time
	Duration time.Duration
	Error    string
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	job    Job

	running bool // overlap guard, under mu

	hmu     sync.Mutex
	history []RunRecord
}

const historySize = 32

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		job: job,
		parser: cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled && strings.TrimSpace(s.cfg.Spec) != "" }

// Start registers the cron entry and begins firing. It is a no-op when the
// scheduler is disabled and an error when the spec does not parse.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Enabled() {
		return nil
	}
	if s.c != nil {
		return errors.New("scheduler already started")
	}

	loc := s.loadLocation()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.fire(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule spec %q: %w", s.cfg.Spec, err)
	}
	s.c = c
	c.Start()
	s.log.Info("scheduler started",
		logx.String("spec", s.cfg.Spec),
		logx.String("tz", loc.String()))
	return nil
}

// Stop halts firing and waits for an in-flight job to return.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Service) fire(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous run still in progress, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	err := s.job(runCtx)
	rec := RunRecord{Started: start, Duration: time.Since(start)}
	if err != nil {
		rec.Error = err.Error()
		s.log.Warn("scheduled run failed", logx.Err(err), logx.Duration("took", rec.Duration))
	} else {
		s.log.Info("scheduled run ok", logx.Duration("took", rec.Duration))
	}
	s.appendHistory(rec)
}

// History returns the most recent run records, oldest first.
func (s *Service) History() []RunRecord {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]RunRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) appendHistory(r RunRecord) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, r)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
