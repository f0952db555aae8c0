// Package schedule runs the scrape and process jobs on cron specs inside the serve command.
// At most one job runs at a time; a tick that arrives while another job is running is
// skipped.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/logging"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler wraps a cron runner bound to a base context.
type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	parser cron.Parser
	busy   sync.Mutex
	logger *zap.Logger
}

// New returns a stopped Scheduler. Jobs receive ctx.
func New(ctx context.Context, logger *zap.Logger) *Scheduler {
	log := logging.Named(logger, "schedule")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		ctx:    ctx,
		parser: parser,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cronLogger{log.Sugar()})),
		),
		logger: log,
	}
}

// Add registers task under spec. An empty spec is ignored.
func (s *Scheduler) Add(name, spec string, task Task) error {
	if spec == "" {
		return nil
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("parse %s schedule %q: %w", name, spec, err)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(name, task) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Len reports how many jobs are registered.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Run executes task unless another job is running. It reports whether the task ran.
func (s *Scheduler) Run(name string, task Task) bool {
	if !s.busy.TryLock() {
		s.logger.Info("previous run still active, skipping tick", zap.String("job", name))
		return false
	}
	defer s.busy.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	if err := task(s.ctx); err != nil {
		s.logger.Warn("scheduled job failed", zap.String("job", name), zap.Error(err))
	}
	return true
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and returns a context that is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
