package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPendingBacklog AlertType = "pending_backlog"
	AlertStalePending   AlertType = "stale_pending"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and posts
// breaches to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates an Alerter. Webhook posts are retried once on 429, 5xx
// and network errors.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("monitoring", "webhook")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
	}
}

// Evaluate returns the alerts whose thresholds snap breaches. A zero
// threshold disables its alert.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.PendingThreshold > 0 && snap.Pending >= a.cfg.PendingThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPendingBacklog,
			Severity: "medium",
			Message:  fmt.Sprintf("%d update(s) awaiting review (threshold %d)", snap.Pending, a.cfg.PendingThreshold),
			Details: map[string]any{
				"pending":   snap.Pending,
				"threshold": a.cfg.PendingThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfter > 0 && snap.Pending > 0 && snap.OldestPendingAge >= a.cfg.StaleAfter {
		alerts = append(alerts, Alert{
			Type:     AlertStalePending,
			Severity: "high",
			Message: fmt.Sprintf("oldest pending update has waited %s (limit %s)",
				snap.OldestPendingAge.Truncate(time.Minute), a.cfg.StaleAfter),
			Details: map[string]any{
				"oldest_pending_secs": snap.OldestPendingSecs,
				"stale_after_secs":    int64(a.cfg.StaleAfter.Seconds()),
				"pending":             snap.Pending,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// delivered. Delivery failures are logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.post(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: alert not delivered",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		err := eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
