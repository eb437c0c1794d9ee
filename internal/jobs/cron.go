package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/JetsGPT/RoomSenseJiraTimeSheetGenerator/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	reportLockKey int64 = 424242
	runTimeout          = 5 * time.Minute
)

type service interface {
	RunScheduled(ctx context.Context, trigger string) error
}

// Locker grants a cluster-wide lock; unlock is nil when another instance holds it.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(context.Context) error, err error)
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	lock Locker
	c    *cron.Cron
}

// NewCron schedules the report run on cfg.ReportCron. A nil locker runs without coordination.
func NewCron(cfg config.Config, log zerolog.Logger, svc service, lock Locker) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, lock: lock, c: c}
	if cfg.ReportCron != "" {
		if _, err := c.AddFunc(cfg.ReportCron, cr.scheduled); err != nil {
			return nil, fmt.Errorf("report cron %q: %w", cfg.ReportCron, err)
		}
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop waits for a running job to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) scheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := cr.RunNow(ctx, "cron"); err != nil {
		cr.log.Error().Err(err).Msg("cron: report failed")
	}
}

// RunNow runs the report under the advisory lock. ran is false when another instance holds it.
func (cr *Cron) RunNow(ctx context.Context, trigger string) (ran bool, err error) {
	if cr.lock != nil {
		unlock, err := cr.lock.TryAdvisoryLock(ctx, reportLockKey)
		if err != nil {
			return false, fmt.Errorf("report lock: %w", err)
		}
		if unlock == nil {
			cr.log.Info().Str("trigger", trigger).Msg("cron: already running elsewhere")
			return false, nil
		}
		defer func() {
			if uerr := unlock(context.Background()); uerr != nil {
				cr.log.Warn().Err(uerr).Msg("cron: unlock failed")
			}
		}()
	}
	cr.log.Info().Str("trigger", trigger).Msg("cron: sprint report")
	return true, cr.svc.RunScheduled(ctx, trigger)
}
