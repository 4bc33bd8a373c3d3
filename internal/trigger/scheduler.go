package trigger

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/HerbigniauxBenoit/spsync/internal/logging"
	"github.com/HerbigniauxBenoit/spsync/internal/sync"
	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// Scheduler fires sync runs on a cron expression. Fires that land while a
// run is still active are skipped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger
}

// NewScheduler registers a run job for the given cron expression (standard
// five-field syntax). The expression is validated here so serve mode fails
// at startup rather than at the first fire.
func NewScheduler(spec string, runner *sync.Runner, opts sync.Options, logger logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		logger.Info("scheduled sync firing", logging.F("schedule", spec))
		stats, err := runner.Run(context.Background(), opts)
		if utils.ErrorCode(err) == utils.ErrCodeRunInProgress {
			logger.Warn("scheduled sync skipped, a run is already in progress")
			return
		}
		if err != nil {
			logger.Error("scheduled sync failed", logging.F("error", err.Error()))
			return
		}
		if stats.HasFailures() {
			logger.Warn("scheduled sync completed with failures",
				logging.F("failed", stats.FilesFailed),
				logging.F("permissions_failed", stats.PermissionsFailed),
			)
		}
	})
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid cron schedule %q", spec), err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight fire to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
