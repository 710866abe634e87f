package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type fakeLock struct {
	held     bool
	acquires int
	releases int
	err      error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.releases++
	f.held = false
	return nil
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

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	ok := &testJob{name: "success"}
	failing := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestCronService(t, lock, ok, failing)

	err := service.RunOnce(context.Background())
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected job error surfaced, got %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", ok.runs, failing.runs)
	}
	if lock.releases != 1 || lock.held {
		t.Fatalf("expected lock released")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	service := newTestCronService(t, &fakeLock{held: true}, job)

	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
}

func TestRunOnceReportsLockError(t *testing.T) {
	service := newTestCronService(t, &fakeLock{err: errors.New("redis down")})
	if err := service.RunOnce(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	job := &testJob{name: "job"}
	service := newTestCronService(t, &fakeLock{}, job)
	service.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run, got %d", job.runs)
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&testJob{name: "a"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(&testJob{name: "a"}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := registry.Register(nil); err != nil {
		t.Fatalf("nil job should be ignored: %v", err)
	}
	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("internal slice leaked")
	}
}

func TestRedisLockExclusiveAndOwnerRelease(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	key := LockKey(client, "test")
	if key != "co:checkout:cron:lock:test" {
		t.Fatalf("unexpected lock key %s", key)
	}

	first, err := NewRedisLock(client, key, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(client, key, time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail ok=%v err=%v", ok, err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if !srv.Exists(key) {
		t.Fatal("non-owner release must not delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if srv.Exists(key) {
		t.Fatal("owner release should delete the lock")
	}
}

func TestRedisLockReleaseAfterTakeoverKeepsNewOwner(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	ctx := context.Background()

	stale, _ := NewRedisLock(client, "lock", time.Minute)
	fresh, _ := NewRedisLock(client, "lock", time.Minute)
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("expected first acquire")
	}
	srv.FastForward(2 * time.Minute)
	if ok, _ := fresh.Acquire(ctx); !ok {
		t.Fatal("expected takeover after expiry")
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !srv.Exists("lock") {
		t.Fatal("stale owner must not delete the new lock")
	}
}
