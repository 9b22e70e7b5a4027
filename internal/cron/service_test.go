package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/orderrecon/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type fakeLock struct {
	rec *lockRecorder
	job string
	ttl time.Duration
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.rec.contend[f.job] {
		return false, nil
	}
	if expiry, ok := f.rec.leases[f.job]; ok && f.rec.now().Before(expiry) {
		return false, nil
	}
	f.rec.leases[f.job] = f.rec.now().Add(f.ttl)
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	delete(f.rec.leases, f.job)
	f.rec.released = append(f.rec.released, f.job)
	return nil
}

// lockRecorder stands in for Redis: leases expire on the test clock.
type lockRecorder struct {
	contend  map[string]bool
	leases   map[string]time.Time
	ttls     map[string]time.Duration
	released []string
	now      func() time.Time
}

func newLockRecorder() *lockRecorder {
	return &lockRecorder{
		contend: map[string]bool{},
		leases:  map[string]time.Time{},
		ttls:    map[string]time.Duration{},
		now:     time.Now,
	}
}

func (r *lockRecorder) held(job string) bool {
	expiry, ok := r.leases[job]
	return ok && r.now().Before(expiry)
}

func (r *lockRecorder) factory(job string, ttl time.Duration) (Lock, error) {
	r.ttls[job] = ttl
	return &fakeLock{rec: r, job: job, ttl: ttl}, nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, registry *Registry, locks *lockRecorder, c *clock) *Service {
	t.Helper()
	locks.now = c.Now
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Locks:    locks.factory,
		Now:      c.Now,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunsAllDueJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry := NewRegistry()
	registry.Register(success, time.Hour)
	registry.Register(failure, time.Hour)
	locks := newLockRecorder()
	service := newTestService(t, registry, locks, &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	service.runDue(context.Background())

	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", success.runs, failure.runs)
	}
	if !locks.held("success") {
		t.Fatalf("successful job must keep its lease until expiry")
	}
	if locks.held("fail") {
		t.Fatalf("failed job must release its lease")
	}
	if len(locks.released) != 1 || locks.released[0] != "fail" {
		t.Fatalf("expected only the failed job released, got %v", locks.released)
	}
	if locks.ttls["success"] != time.Hour-defaultTick {
		t.Fatalf("expected lease one tick short of the interval, got %s", locks.ttls["success"])
	}
}

func TestServiceRunsJobOncePerIntervalAcrossReplicas(t *testing.T) {
	first := &testJob{name: "quote-recovery"}
	second := &testJob{name: "quote-recovery"}
	firstRegistry := NewRegistry()
	firstRegistry.Register(first, 15*time.Minute)
	secondRegistry := NewRegistry()
	secondRegistry.Register(second, 15*time.Minute)
	locks := newLockRecorder()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	replicaA := newTestService(t, firstRegistry, locks, c)
	replicaB := newTestService(t, secondRegistry, locks, c)
	ctx := context.Background()

	replicaA.runDue(ctx)
	for i := 0; i < 12; i++ {
		c.now = c.now.Add(5 * time.Minute)
		if i == 0 {
			// replica B starts five minutes behind A
			replicaB.runDue(ctx)
			continue
		}
		replicaA.runDue(ctx)
		replicaB.runDue(ctx)
	}

	// 60 minutes elapsed: one run per 15-minute interval at 0, 15, 30, 45 and 60.
	if total := first.runs + second.runs; total != 5 {
		t.Fatalf("expected 5 runs across replicas, got %d (A=%d B=%d)", total, first.runs, second.runs)
	}
}

func TestServiceFailedJobRetriedByOtherReplica(t *testing.T) {
	failing := &testJob{name: "invoice-recovery", err: errors.New("provider down")}
	healthy := &testJob{name: "invoice-recovery"}
	failingRegistry := NewRegistry()
	failingRegistry.Register(failing, time.Hour)
	healthyRegistry := NewRegistry()
	healthyRegistry.Register(healthy, time.Hour)
	locks := newLockRecorder()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	replicaA := newTestService(t, failingRegistry, locks, c)
	replicaB := newTestService(t, healthyRegistry, locks, c)

	replicaA.runDue(context.Background())
	c.now = c.now.Add(time.Minute)
	replicaB.runDue(context.Background())

	if failing.runs != 1 || healthy.runs != 1 {
		t.Fatalf("expected failed run to be retried elsewhere, got A=%d B=%d", failing.runs, healthy.runs)
	}
}

func TestServiceHonorsPerJobCadence(t *testing.T) {
	frequent := &testJob{name: "quote-recovery"}
	daily := &testJob{name: "quote-recovery-catchup"}
	registry := NewRegistry()
	registry.Register(frequent, 15*time.Minute)
	registry.Register(daily, 24*time.Hour)
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	service := newTestService(t, registry, newLockRecorder(), c)
	ctx := context.Background()

	service.runDue(ctx)
	for i := 0; i < 8; i++ {
		c.now = c.now.Add(5 * time.Minute)
		service.runDue(ctx)
	}

	// 40 minutes elapsed: runs at 0, 15 and 30 minutes.
	if frequent.runs != 3 {
		t.Fatalf("expected frequent job to run 3 times, ran %d", frequent.runs)
	}
	if daily.runs != 1 {
		t.Fatalf("expected daily job to run once, ran %d", daily.runs)
	}
}

func TestServiceSkipsJobHeldElsewhere(t *testing.T) {
	held := &testJob{name: "quote-recovery"}
	free := &testJob{name: "invoice-recovery"}
	registry := NewRegistry()
	registry.Register(held, time.Minute)
	registry.Register(free, time.Minute)
	locks := newLockRecorder()
	locks.contend["quote-recovery"] = true
	service := newTestService(t, registry, locks, &clock{now: time.Now()})

	service.runDue(context.Background())

	if held.runs != 0 {
		t.Fatalf("expected contended job to be skipped")
	}
	if free.runs != 1 {
		t.Fatalf("expected other job to run, ran %d", free.runs)
	}
}

func TestServiceLockFactoryError(t *testing.T) {
	job := &testJob{name: "quote-recovery"}
	registry := NewRegistry()
	registry.Register(job, time.Minute)
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Locks: func(string, time.Duration) (Lock, error) {
			return nil, errors.New("no redis")
		},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	service.runDue(context.Background())

	if job.runs != 0 {
		t.Fatalf("job must not run without its lock")
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "quote-recovery"}
	registry := NewRegistry()
	registry.Register(job, time.Hour)
	service := newTestService(t, registry, newLockRecorder(), &clock{now: time.Now()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestNewServiceRequiresLocks(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without lock factory")
	}
}
