// Package scheduler fires the periodic summary runs at fixed wall-clock
// times in the service timezone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"janani-health/internal/core"
	"janani-health/pkg"
)

// Job binds a period type to its cron spec.
type Job struct {
	Period pkg.PeriodType
	Spec   string
}

// Jobs are the summary schedules: daily and weekly at 21:00, monthly at
// midnight on the 1st.
var Jobs = []Job{
	{Period: pkg.PeriodDaily, Spec: "0 21 * * *"},
	{Period: pkg.PeriodWeekly, Spec: "0 21 * * 0"},
	{Period: pkg.PeriodMonthly, Spec: "0 0 1 * *"},
}

// Runner generates the summaries of one period type.
type Runner interface {
	Run(ctx context.Context, period pkg.PeriodType) (core.RunReport, error)
}

// Scheduler owns the cron instance.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *zap.SugaredLogger
	ctx    context.Context
	cancel context.CancelFunc
	ids    map[pkg.PeriodType]cron.EntryID
}

// New registers every job; nothing runs until Start.
func New(runner Runner, loc *time.Location, log *zap.SugaredLogger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		ids:    map[pkg.PeriodType]cron.EntryID{},
	}
	for _, j := range Jobs {
		period := j.Period
		id, err := s.cron.AddFunc(j.Spec, func() { s.run(period) })
		if err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s summary: %w", period, err)
		}
		s.ids[period] = id
	}
	return s, nil
}

func (s *Scheduler) run(period pkg.PeriodType) {
	s.log.Infow("summary cron triggered", "period", period)
	report, err := s.runner.Run(s.ctx, period)
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		s.log.Warnw("previous summary run still in progress, skipping", "period", period)
	case err != nil:
		s.log.Errorw("summary run failed", "period", period, "error", err)
	default:
		s.log.Infow("summary cron done", "period", period, "generated", report.Generated, "failed", report.Failed)
	}
}

// Next returns the next trigger time of period, zero before Start.
func (s *Scheduler) Next(period pkg.PeriodType) time.Time {
	id, ok := s.ids[period]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, j := range Jobs {
		s.log.Infow("summary job scheduled", "period", j.Period, "spec", j.Spec, "next", s.Next(j.Period))
	}
}

// Stop prevents new runs, cancels running ones and waits for them.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}
