package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/review"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	_, err = st.SeedItems(context.Background(), []model.Item{{Name: "Laptops", Rate: 18}})
	require.NoError(t, err)
	return st
}

func TestCollector_Collect(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		u := &model.PendingUpdate{DetectedItem: "Laptops", ProposedRate: float64(20 + i), CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, st.CreatePendingUpdate(ctx, u))
		ids = append(ids, u.ID)
	}
	engine := review.NewEngine(st)
	_, err := engine.Resolve(ctx, ids[0], model.DecisionReject, "m1")
	require.NoError(t, err)
	_, err = engine.Resolve(ctx, ids[3], model.DecisionAccept, "m1")
	require.NoError(t, err)

	c := NewCollector(st)
	c.now = func() time.Time { return base.Add(10 * time.Hour) }
	snap, err := c.Collect(ctx, 24*365*100)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Pending)
	assert.Equal(t, 1, snap.Accepted)
	assert.Equal(t, 1, snap.Rejected)
	assert.Equal(t, 9*time.Hour, snap.OldestPendingAge)
	assert.Equal(t, int64(9*3600), snap.OldestPendingSecs)
	assert.Equal(t, 1, snap.RecentAccepted)
	assert.Equal(t, 1, snap.RecentRejected)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := NewCollector(newStore(t)).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.Pending)
	assert.Zero(t, snap.OldestPendingAge)
	assert.Equal(t, 24, snap.LookbackHours)
}

func newFastAlerter(cfg config.MonitoringConfig) *Alerter {
	a := NewAlerter(cfg)
	a.retry.InitialBackoff = time.Millisecond
	a.retry.MaxBackoff = 2 * time.Millisecond
	return a
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{PendingThreshold: 10, StaleAfter: 48 * time.Hour})

	alerts := a.Evaluate(&Snapshot{Pending: 3, OldestPendingAge: time.Hour})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_Backlog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{PendingThreshold: 10})

	alerts := a.Evaluate(&Snapshot{Pending: 12})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPendingBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "12 update(s)")
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{StaleAfter: 48 * time.Hour})

	alerts := a.Evaluate(&Snapshot{Pending: 1, OldestPendingAge: 72 * time.Hour})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStalePending, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)

	assert.Empty(t, a.Evaluate(&Snapshot{Pending: 0, OldestPendingAge: 72 * time.Hour}))
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPendingBacklog}, {Type: AlertStalePending}})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newFastAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertPendingBacklog}}))
}

func TestAlerter_SendAlerts_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newFastAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	assert.Equal(t, 1, a.SendAlerts(context.Background(), []Alert{{Type: AlertPendingBacklog}}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	a := newFastAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertPendingBacklog}}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertPendingBacklog}}))
}

func TestChecker_RunSendsAlerts(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.CreatePendingUpdate(context.Background(), &model.PendingUpdate{DetectedItem: "Laptops", ProposedRate: 22}))

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:       srv.URL,
		CheckInterval:    10 * time.Millisecond,
		LookbackHours:    24,
		PendingThreshold: 1,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewChecker(NewCollector(st), NewAlerter(cfg), cfg).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return received.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestChecker_CheckRaisesOnce(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	u := &model.PendingUpdate{DetectedItem: "Laptops", ProposedRate: 22}
	require.NoError(t, st.CreatePendingUpdate(ctx, u))

	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	cfg := config.MonitoringConfig{WebhookURL: srv.URL, LookbackHours: 24, PendingThreshold: 1}
	c := NewChecker(NewCollector(st), newFastAlerter(cfg), cfg)

	raised := c.Check(ctx)
	require.Len(t, raised, 1)
	assert.Equal(t, AlertPendingBacklog, raised[0].Type)
	assert.Empty(t, c.Check(ctx))
	assert.Equal(t, int32(1), received.Load())

	_, err := review.NewEngine(st).Resolve(ctx, u.ID, model.DecisionReject, "m1")
	require.NoError(t, err)
	assert.Empty(t, c.Check(ctx))

	require.NoError(t, st.CreatePendingUpdate(ctx, &model.PendingUpdate{DetectedItem: "Laptops", ProposedRate: 23}))
	assert.Len(t, c.Check(ctx), 1)
	assert.Equal(t, int32(2), received.Load())
}
