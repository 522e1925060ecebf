package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

// DefaultUptimeSpec probes every URL at the top of each hour.
const DefaultUptimeSpec = "0 * * * *"

// UptimeSweeper probes every registered URL on a cron schedule
type UptimeSweeper struct {
	sweeper Sweeper
	logger  logger.Logger
	spec    string
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewUptimeSweeper creates a sweeper for a standard five-field cron spec.
func NewUptimeSweeper(sweeper Sweeper, log logger.Logger, spec string) *UptimeSweeper {
	if spec == "" {
		spec = DefaultUptimeSpec
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &UptimeSweeper{
		sweeper: sweeper,
		logger:  log,
		spec:    spec,
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
	}
}

// Start registers the job and starts the cron loop
func (u *UptimeSweeper) Start(ctx context.Context) error {
	if _, err := u.cron.AddFunc(u.spec, func() { u.Check(ctx) }); err != nil {
		return fmt.Errorf("invalid uptime schedule %q: %w", u.spec, err)
	}
	u.cron.Start()
	u.logger.Info("uptime sweeper scheduled", logger.String("spec", u.spec))
	return nil
}

// Stop stops the cron loop and waits for a running check to finish
func (u *UptimeSweeper) Stop() {
	<-u.cron.Stop().Done()
}

// Check runs one uptime pass. Overlapping runs are skipped.
func (u *UptimeSweeper) Check(ctx context.Context) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		u.logger.Warn("previous uptime sweep still running, skipping")
		return
	}
	u.running = true
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	report, err := u.sweeper.CheckAll(ctx)
	if err != nil {
		u.logger.Error("uptime sweep failed", logger.Error(err))
		return
	}
	u.logger.Info("uptime sweep finished",
		logger.Int("entries", report.Total),
		logger.Any("statuses", report.Statuses))
}
