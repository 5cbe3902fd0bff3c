package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Scheduler runs named jobs on six-field cron specs. A job never overlaps with itself;
// a tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.wg.Add(1)
		defer s.wg.Done()

		s.logger.Infof("Running scheduled %s", name)
		if err := job(s.ctx); err != nil {
			s.logger.Errorf("Scheduled %s failed: %v", name, err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
}
