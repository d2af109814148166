package health

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Monitor refreshes the readiness gauges on a cron schedule so they stay
// current between scrapes of /readyz.
type Monitor struct {
	checker *Checker
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewMonitor parses spec (standard cron or descriptors such as
// "@every 30s").
func NewMonitor(checker *Checker, spec string, logger *slog.Logger) (*Monitor, error) {
	m := &Monitor{
		checker: checker,
		cron:    cron.New(),
		logger:  logger.With("component", "health_monitor"),
	}
	if _, err := m.cron.AddFunc(spec, m.probe); err != nil {
		return nil, fmt.Errorf("schedule health probe: %w", err)
	}
	return m, nil
}

// Start runs the schedule until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.cron.Start()
	m.logger.Info("health monitor started", "dependencies", m.checker.Dependencies())

	<-ctx.Done()
	stopped := m.cron.Stop()
	<-stopped.Done()
	m.logger.Info("health monitor shut down")
}

func (m *Monitor) probe() {
	res := m.checker.Readiness(context.Background())
	if res.Status != "up" {
		m.logger.Warn("dependencies degraded", "checks", res.Checks)
	}
}
