package monitoring

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/config"
	"github.com/sells-group/candidate-profiler/internal/status"
)

const defaultCheckInterval = 30 * time.Second

// Checker periodically snapshots pipeline and candidate health, sends
// webhook alerts for pipelines that entered Error and warns when candidates
// reach a failed state between checks.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration

	// Owned by the goroutine calling check.
	lastFailed int
	seenCounts bool
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{collector: collector, alerter: alerter, interval: interval}
}

// checkResult summarises one pass.
type checkResult struct {
	Checked     []string
	InError     []string
	NewFailures int
	Alerts      int
	Sent        int
}

// Run checks once immediately, then every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", c.interval))

	c.check(ctx, log)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) checkResult {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return checkResult{}
	}

	var res checkResult
	for name, st := range snap.Pipelines {
		res.Checked = append(res.Checked, name)
		if st.Status == status.Error {
			res.InError = append(res.InError, name)
		}
	}
	sort.Strings(res.Checked)
	sort.Strings(res.InError)

	if snap.Candidates != nil {
		if c.seenCounts && snap.FailedCandidates > c.lastFailed {
			res.NewFailures = snap.FailedCandidates - c.lastFailed
			log.Warn("monitoring: candidates failed since last check",
				zap.Int("new_failures", res.NewFailures),
				zap.Int("failed_total", snap.FailedCandidates),
			)
		}
		c.lastFailed = snap.FailedCandidates
		c.seenCounts = true
	}

	alerts := c.alerter.Evaluate(snap)
	res.Alerts = len(alerts)
	if len(alerts) > 0 {
		res.Sent = c.alerter.SendAlerts(ctx, alerts)
	}

	fields := []zap.Field{
		zap.Strings("pipelines", res.Checked),
		zap.Strings("in_error", res.InError),
		zap.Int("alerts_triggered", res.Alerts),
		zap.Int("alerts_sent", res.Sent),
	}
	if res.Alerts == 0 {
		log.Debug("monitoring: health check complete", fields...)
	} else {
		log.Info("monitoring: health check complete", fields...)
	}
	return res
}
