package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/errors"
	platformtest "github.com/realtechee/platform/internal/testing"
)

func testConfig() *am.Config {
	return &am.Config{
		Dispatch: am.Dispatch{
			Workers:             1,
			PollIntervalSeconds: 5,
		},
	}
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type countingHandler struct {
	name  string
	calls atomic.Int32
	err   error
}

func (h *countingHandler) Execute(ctx context.Context, job *Job) error {
	h.calls.Add(1)
	return h.err
}

func (h *countingHandler) Name() string { return h.name }

func TestWorkerPoolStartStop(t *testing.T) {
	db := platformtest.CreateTestDB(t)
	poolCfg := WorkerPoolConfig{Workers: 2, PollInterval: 10 * time.Millisecond}
	pool := NewWorkerPool(db, testConfig(), poolCfg, testLogger())

	if pool.Workers() != 2 {
		t.Errorf("expected 2 workers, got %d", pool.Workers())
	}

	pool.Start()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	pool.Stop()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestWorkerPoolProcessesJob(t *testing.T) {
	db := platformtest.CreateTestDB(t)
	poolCfg := WorkerPoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond}
	pool := NewWorkerPool(db, testConfig(), poolCfg, testLogger())

	handler := &countingHandler{name: "notify.email"}
	pool.Registry().Register(handler)

	job, _ := NewJob("notify.email", "lead:r-1", nil, 1)
	if err := pool.GetQueue().Enqueue(job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.GetQueue(), job.ID, JobStatusCompleted, 2*time.Second)

	if handler.calls.Load() != 1 {
		t.Errorf("expected handler called once, got %d", handler.calls.Load())
	}
}

func TestWorkerPoolRetriesThenFails(t *testing.T) {
	db := platformtest.CreateTestDB(t)
	poolCfg := WorkerPoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond}
	pool := NewWorkerPool(db, testConfig(), poolCfg, testLogger())

	handler := &countingHandler{name: "notify.sms", err: errors.New("provider down")}
	pool.Registry().Register(handler)

	job, _ := NewJob("notify.sms", "quote:q-1", nil, 1)
	if err := pool.GetQueue().Enqueue(job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.GetQueue(), job.ID, JobStatusFailed, 5*time.Second)

	failed, err := pool.GetQueue().GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if failed.RetryCount != MaxRetries {
		t.Errorf("expected %d retries, got %d", MaxRetries, failed.RetryCount)
	}
	// Initial attempt plus MaxRetries re-runs
	if got := handler.calls.Load(); got != int32(MaxRetries+1) {
		t.Errorf("expected %d handler calls, got %d", MaxRetries+1, got)
	}
}

func TestWorkerPoolRecoversOrphanedJobs(t *testing.T) {
	db := platformtest.CreateTestDB(t)
	store := NewStore(db)

	// A job left "running" by a crashed process
	orphan, _ := NewJob("notify.email", "lead:r-orphan", nil, 1)
	orphan.Start()
	if err := store.CreateJob(orphan); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	poolCfg := WorkerPoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond}
	pool := NewWorkerPool(db, testConfig(), poolCfg, testLogger())
	pool.Registry().Register(&countingHandler{name: "notify.email"})

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.GetQueue(), orphan.ID, JobStatusCompleted, 2*time.Second)
}

func TestWorkerPoolRestartAfterStop(t *testing.T) {
	db := platformtest.CreateTestDB(t)
	poolCfg := WorkerPoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond}
	pool := NewWorkerPool(db, testConfig(), poolCfg, testLogger())
	handler := &countingHandler{name: "notify.email"}
	pool.Registry().Register(handler)

	pool.Start()
	pool.Stop()

	// Restart recreates the worker context and keeps processing
	job, _ := NewJob("notify.email", "lead:r-2", nil, 1)
	if err := pool.GetQueue().Enqueue(job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pool.Start()
	defer pool.Stop()

	waitForStatus(t, pool.GetQueue(), job.ID, JobStatusCompleted, 2*time.Second)
}

func TestPoolConfigFromAm(t *testing.T) {
	cfg := &am.Config{Dispatch: am.Dispatch{Workers: 3, PollIntervalSeconds: 2}}
	poolCfg := PoolConfigFromAm(cfg)
	if poolCfg.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", poolCfg.Workers)
	}
	if poolCfg.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %v", poolCfg.PollInterval)
	}

	// Zero values fall back to defaults
	poolCfg = PoolConfigFromAm(&am.Config{})
	defaults := DefaultWorkerPoolConfig()
	if poolCfg.Workers != defaults.Workers || poolCfg.PollInterval != defaults.PollInterval {
		t.Errorf("expected defaults for zero config, got %+v", poolCfg)
	}
}

func TestCalculateSafeWorkerCount(t *testing.T) {
	tests := []struct {
		availableGB float64
		want        int
	}{
		{0.5, 1},   // starved host still gets one worker
		{2.0, 4},   // (2-1)/0.25
		{10.0, 16}, // capped
	}
	for _, tt := range tests {
		if got := calculateSafeWorkerCount(tt.availableGB); got != tt.want {
			t.Errorf("calculateSafeWorkerCount(%.1f) = %d, want %d", tt.availableGB, got, tt.want)
		}
	}
}

// waitForStatus polls until the job reaches the expected status or times out.
func waitForStatus(t *testing.T, queue *Queue, jobID string, want JobStatus, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := queue.GetJob(jobID)
		if err == nil && job.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	last := "unknown"
	if job, err := queue.GetJob(jobID); err == nil {
		last = string(job.Status)
	}
	t.Fatalf("job %s never reached %s (last status: %s)", jobID, want, last)
}
