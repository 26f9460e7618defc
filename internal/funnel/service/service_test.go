package service

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"nurture_backend/internal/funnel/repository"
	"nurture_backend/platform/logger"
)

type fakeStore struct {
	leads       int64
	jobs        map[string]int64
	sentToday   int64
	sentWeekly  int64
	failures    []repository.TemplateFailureCount
	active      int64
	oldestDue   time.Time
	hasPending  bool
	failMetrics map[string]bool
}

var (
	errQuery = errors.New("query failed")
	testNow  = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

func (f *fakeStore) CountLeadsSince(ctx context.Context, since time.Time) (int64, error) {
	if f.failMetrics["leads"] {
		return 0, errQuery
	}
	return f.leads, nil
}

func (f *fakeStore) CountJobsInState(ctx context.Context, state string) (int64, error) {
	if f.failMetrics["queue."+state] {
		return 0, errQuery
	}
	return f.jobs[state], nil
}

func (f *fakeStore) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	if f.failMetrics["sent"] {
		return 0, errQuery
	}
	if testNow.Sub(since) > 48*time.Hour {
		return f.sentWeekly, nil
	}
	return f.sentToday, nil
}

func (f *fakeStore) CountActiveEnrollments(ctx context.Context) (int64, error) {
	if f.failMetrics["active"] {
		return 0, errQuery
	}
	return f.active, nil
}

func (f *fakeStore) TemplateFailuresSince(ctx context.Context, since time.Time) ([]repository.TemplateFailureCount, error) {
	if f.failMetrics["failures"] {
		return nil, errQuery
	}
	return f.failures, nil
}

func (f *fakeStore) OldestPendingSince(ctx context.Context) (time.Time, bool, error) {
	if f.failMetrics["oldest"] {
		return time.Time{}, false, errQuery
	}
	return f.oldestDue, f.hasPending, nil
}

type testFunnelConfig struct{}

func (testFunnelConfig) GetFailedAlertThreshold() int64      { return 25 }
func (testFunnelConfig) GetFailureRateAlertPct() float64     { return 10 }
func (testFunnelConfig) GetPendingStaleAfter() time.Duration { return 30 * time.Minute }
func (testFunnelConfig) GetSnapshotTTL() time.Duration       { return 30 * time.Second }

func newService(store *fakeStore) *Service {
	svc := New(store, nil, testFunnelConfig{}, logger.New("test"))
	svc.now = func() time.Time { return testNow }
	return svc
}

func healthyStore() *fakeStore {
	return &fakeStore{
		leads:       12,
		jobs:        map[string]int64{"pending": 3, "sending": 1, "sent": 200, "failed": 2},
		sentToday:   40,
		sentWeekly:  250,
		active:      80,
		failMetrics: map[string]bool{},
	}
}

func alertLevels(snap Snapshot) []string {
	levels := make([]string, 0, len(snap.Alerts))
	for _, a := range snap.Alerts {
		levels = append(levels, a.Level)
	}
	return levels
}

func TestSnapshotHealthy(t *testing.T) {
	svc := newService(healthyStore())

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Degraded) != 0 {
		t.Errorf("degraded = %v, want none", snap.Degraded)
	}
	if *snap.LeadsToday != 12 || *snap.Queue.Pending != 3 || *snap.ActiveEnrollments != 80 {
		t.Error("metrics not carried through")
	}
	if !slices.Equal(alertLevels(snap), []string{"info"}) {
		t.Errorf("alerts = %v, want info baseline", snap.Alerts)
	}
}

func TestSnapshotDegradesFailingMetricsOnly(t *testing.T) {
	store := healthyStore()
	store.failMetrics["leads"] = true
	store.failMetrics["queue.failed"] = true
	svc := newService(store)

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("a failing metric must not fail the snapshot: %v", err)
	}
	if snap.LeadsToday != nil || snap.Queue.Failed != nil {
		t.Error("failed metrics must be nil")
	}
	if snap.Queue.Pending == nil || *snap.Queue.Pending != 3 {
		t.Error("healthy metrics must survive")
	}
	if !slices.Contains(snap.Degraded, "leadsToday") || !slices.Contains(snap.Degraded, "queue.failed") {
		t.Errorf("degraded = %v", snap.Degraded)
	}
}

func TestAlertFailedCountThreshold(t *testing.T) {
	store := healthyStore()
	store.jobs["failed"] = 26
	svc := newService(store)

	snap, _ := svc.Snapshot(context.Background())
	if !slices.Contains(alertLevels(snap), "error") {
		t.Errorf("alerts = %v, want error", snap.Alerts)
	}

	// Exactly at the threshold stays quiet.
	store2 := healthyStore()
	store2.jobs["failed"] = 25
	snap2, _ := newService(store2).Snapshot(context.Background())
	if slices.Contains(alertLevels(snap2), "error") {
		t.Errorf("alerts = %v, threshold is exclusive", snap2.Alerts)
	}
}

func TestAlertFailureRate(t *testing.T) {
	store := healthyStore()
	store.sentToday = 8
	store.failures = []repository.TemplateFailureCount{{TemplateID: "welcome-01-hello", Count: 2}}
	svc := newService(store)

	// 2 failed of 10 total = 20% > 10%.
	snap, _ := svc.Snapshot(context.Background())
	if !slices.Contains(alertLevels(snap), "error") {
		t.Errorf("alerts = %v, want failure rate error", snap.Alerts)
	}
}

func TestAlertStalePending(t *testing.T) {
	store := healthyStore()
	store.hasPending = true
	store.oldestDue = time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC) // an hour old
	svc := newService(store)

	snap, _ := svc.Snapshot(context.Background())
	if !slices.Contains(alertLevels(snap), "warning") {
		t.Errorf("alerts = %v, want staleness warning", snap.Alerts)
	}
}

func TestAlertsSuppressedWhenMetricUnknown(t *testing.T) {
	store := healthyStore()
	store.jobs["failed"] = 1000
	store.failMetrics["queue.failed"] = true
	svc := newService(store)

	snap, _ := svc.Snapshot(context.Background())
	if slices.Contains(alertLevels(snap), "error") {
		t.Errorf("alerts = %v; an unknown metric cannot raise an alert", snap.Alerts)
	}
}
