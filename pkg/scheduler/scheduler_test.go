package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/realmsync/realmsync/pkg/lock"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
	"github.com/realmsync/realmsync/pkg/store"
)

type fakeSyncer struct {
	mu     sync.Mutex
	synced []string
	err    error
}

func (f *fakeSyncer) Sync(ctx context.Context, src *models.Source) (*kerberos.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, src.Slug)
	return &kerberos.SyncResult{}, f.err
}

func (f *fakeSyncer) slugs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.synced...)
}

type passthroughExclusive struct{}

func (passthroughExclusive) RunExclusive(ctx context.Context, src *models.Source, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type deniedExclusive struct{}

func (deniedExclusive) RunExclusive(ctx context.Context, src *models.Source, fn func(ctx context.Context) error) error {
	return lock.ErrNotAcquired
}

func createTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createSource(t *testing.T, st store.Store, realm string, enabled bool) *models.Source {
	t.Helper()
	src := &models.Source{
		Name:          realm,
		Realm:         realm,
		Enabled:       enabled,
		SyncUsers:     enabled,
		SyncPrincipal: "sync/admin@" + realm,
		SyncPassword:  "pw",
	}
	if _, err := st.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	return src
}

func TestSchedulerSyncsEnabledSources(t *testing.T) {
	st := createTestStore(t)
	createSource(t, st, "EXAMPLE.COM", true)
	createSource(t, st, "OTHER.ORG", true)
	createSource(t, st, "DISABLED.NET", false)

	syncer := &fakeSyncer{}
	sched := New(st, syncer, passthroughExclusive{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// The first round runs immediately; wait for it.
	deadline := time.After(5 * time.Second)
	for len(syncer.slugs()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for first round, synced %v", syncer.slugs())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	slugs := syncer.slugs()
	seen := map[string]bool{}
	for _, s := range slugs {
		seen[s] = true
	}
	if !seen["example.com"] || !seen["other.org"] {
		t.Errorf("synced %v, want both enabled sources", slugs)
	}
	if seen["disabled.net"] {
		t.Error("disabled source must not be synced")
	}
}

func TestSchedulerToleratesSyncFailure(t *testing.T) {
	st := createTestStore(t)
	createSource(t, st, "EXAMPLE.COM", true)

	syncer := &fakeSyncer{err: errors.New("kdc unreachable")}
	sched := New(st, syncer, passthroughExclusive{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for len(syncer.slugs()) < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for first round")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v, want nil despite sync failure", err)
	}
}

func TestSchedulerSkipsHeldLocks(t *testing.T) {
	st := createTestStore(t)
	createSource(t, st, "EXAMPLE.COM", true)

	syncer := &fakeSyncer{}
	sched := New(st, syncer, deniedExclusive{}, 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := syncer.slugs(); len(got) != 0 {
		t.Errorf("synced %v, want none while the lock is held elsewhere", got)
	}
}
