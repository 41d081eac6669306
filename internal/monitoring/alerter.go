package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/config"
	"github.com/sells-group/candidate-profiler/internal/status"
)

// AlertType identifies the kind of alert.
type AlertType string

// AlertPipelineError fires when a pipeline enters the error status.
const AlertPipelineError AlertType = "pipeline_error"

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Pipeline  string         `json:"pipeline"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns snapshots into alerts and delivers them via webhook. A
// pipeline alerts once per stay in the error status.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	mu     sync.Mutex
	active map[string]bool
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		active: make(map[string]bool),
	}
}

// Evaluate returns alerts for pipelines that newly entered the error status.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(snap.Pipelines))
	for name := range snap.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	var alerts []Alert
	now := time.Now().UTC()
	for _, name := range names {
		st := snap.Pipelines[name]
		if st.Status != status.Error {
			delete(a.active, name)
			continue
		}
		if a.active[name] {
			continue
		}
		a.active[name] = true
		alerts = append(alerts, Alert{
			Type:     AlertPipelineError,
			Severity: "high",
			Pipeline: name,
			Message:  fmt.Sprintf("Pipeline %s failed: %s", name, st.ErrorMessage),
			Details: map[string]any{
				"error":             st.ErrorMessage,
				"since":             st.LastUpdated,
				"failed_candidates": snap.FailedCandidates,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("pipeline", alert.Pipeline),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("pipeline", alert.Pipeline),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
