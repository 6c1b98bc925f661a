package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker polls the review queue and raises each alert type once per
// breach: an alert is re-sent only after its condition has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	active    map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		active:    make(map[AlertType]bool),
	}
}

// Run checks immediately and then on every interval until ctx is done.
// Run must not be called concurrently.
func (c *Checker) Run(ctx context.Context) {
	interval := c.cfg.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: checker started",
		zap.Duration("interval", interval),
		zap.Int("pending_threshold", c.cfg.PendingThreshold),
		zap.Duration("stale_after", c.cfg.StaleAfter),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.Check(ctx)
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects one snapshot and sends the alerts that were not already
// active. It returns the newly raised alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackHours)
	if err != nil {
		zap.L().Error("monitoring: collect snapshot", zap.Error(err))
		return nil
	}

	breached := make(map[AlertType]bool)
	var raised []Alert
	for _, a := range c.alerter.Evaluate(snap) {
		breached[a.Type] = true
		if !c.active[a.Type] {
			raised = append(raised, a)
		}
	}
	for t := range c.active {
		if !breached[t] {
			zap.L().Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.active = breached

	if len(raised) > 0 {
		sent := c.alerter.SendAlerts(ctx, raised)
		zap.L().Info("monitoring: alerts raised",
			zap.Int("raised", len(raised)),
			zap.Int("sent", sent),
			zap.Int("pending", snap.Pending),
		)
	}
	return raised
}
