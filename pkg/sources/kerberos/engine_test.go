package kerberos

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/realmsync/realmsync/pkg/kadmin"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/secrets"
	"github.com/realmsync/realmsync/pkg/store"
)

// fakeClient is an in-memory admin session for tests.
type fakeClient struct {
	mu         sync.Mutex
	principals []kadmin.Principal
	listErr    error
	exists     bool
	existsErr  error
	passwords  map[string]string
	setErr     error
	closed     bool
}

func newFakeClient(principals ...kadmin.Principal) *fakeClient {
	return &fakeClient{principals: principals, passwords: make(map[string]string)}
}

func (c *fakeClient) PrincipalExists(ctx context.Context, principal string) (bool, error) {
	return c.exists, c.existsErr
}

func (c *fakeClient) ListPrincipals(ctx context.Context, filter string) ([]kadmin.Principal, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.principals, nil
}

func (c *fakeClient) SetPassword(ctx context.Context, principal, password string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passwords[principal] = password
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) password(principal string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pw, ok := c.passwords[principal]
	return pw, ok
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

func testKey(t *testing.T) *[secrets.KeySize]byte {
	t.Helper()
	key, err := secrets.ParseKey(strings.Repeat("ab", secrets.KeySize))
	if err != nil {
		t.Fatalf("failed to parse test key: %v", err)
	}
	return key
}

func testSource(t *testing.T, st store.Store, realm string) *models.Source {
	t.Helper()
	src := &models.Source{
		Name:              realm,
		Realm:             realm,
		Enabled:           true,
		SyncUsers:         true,
		SyncUsersPassword: true,
		SyncGuessEmail:    true,
		SyncPrincipal:     "sync/admin@" + realm,
		SyncPassword:      "hunter2",
	}
	if _, err := st.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("failed to create test source: %v", err)
	}
	return src
}

// newTestEngine wires an engine to an in-memory store and a pool that
// always hands out the given client.
func newTestEngine(t *testing.T, st store.Store, cl kadmin.Client) *Engine {
	t.Helper()
	pool := NewConnectionPool(func(ctx context.Context, src *models.Source) (kadmin.Client, error) {
		return cl, nil
	})
	cfg := Config{
		ScratchRoot:      t.TempDir(),
		TaskTimeoutHours: 2,
		SecretsKey:       testKey(t),
	}
	return NewEngineWithPool(st, cfg, pool, nil)
}

func TestCheckConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("sync disabled reports ok without dialing", func(t *testing.T) {
		dialed := false
		pool := NewConnectionPool(func(ctx context.Context, src *models.Source) (kadmin.Client, error) {
			dialed = true
			return nil, errors.New("unexpected dial")
		})
		e := NewEngineWithPool(createTestStore(t), Config{}, pool, nil)

		status := e.CheckConnection(ctx, &models.Source{SyncUsers: false})
		if status.Status != "ok" {
			t.Errorf("Status = %q, want ok", status.Status)
		}
		if status.PrincipalExists != nil {
			t.Error("PrincipalExists should be nil when sync is disabled")
		}
		if dialed {
			t.Error("connection should not be dialed when sync is disabled")
		}
	})

	t.Run("unconfigured source reports no connection", func(t *testing.T) {
		pool := NewConnectionPool(func(ctx context.Context, src *models.Source) (kadmin.Client, error) {
			return nil, kadmin.ErrNotConfigured
		})
		e := NewEngineWithPool(createTestStore(t), Config{}, pool, nil)

		status := e.CheckConnection(ctx, &models.Source{SyncUsers: true})
		if status.Status != "no connection" {
			t.Errorf("Status = %q, want no connection", status.Status)
		}
	})

	t.Run("dial failure folds into status", func(t *testing.T) {
		pool := NewConnectionPool(func(ctx context.Context, src *models.Source) (kadmin.Client, error) {
			return nil, errors.New("kdc unreachable")
		})
		e := NewEngineWithPool(createTestStore(t), Config{}, pool, nil)

		status := e.CheckConnection(ctx, &models.Source{SyncUsers: true})
		if !strings.Contains(status.Status, "kdc unreachable") {
			t.Errorf("Status = %q, want dial error folded in", status.Status)
		}
	})

	t.Run("healthy source reports principal existence", func(t *testing.T) {
		cl := newFakeClient()
		cl.exists = true
		st := createTestStore(t)
		e := newTestEngine(t, st, cl)
		src := testSource(t, st, "EXAMPLE.COM")

		status := e.CheckConnection(ctx, src)
		if status.Status != "ok" {
			t.Errorf("Status = %q, want ok", status.Status)
		}
		if status.PrincipalExists == nil || !*status.PrincipalExists {
			t.Error("PrincipalExists should be true")
		}
	})

	t.Run("probe failure folds into status", func(t *testing.T) {
		cl := newFakeClient()
		cl.existsErr = errors.New("tgs timeout")
		st := createTestStore(t)
		e := newTestEngine(t, st, cl)
		src := testSource(t, st, "PROBE.EXAMPLE.COM")

		status := e.CheckConnection(ctx, src)
		if !strings.Contains(status.Status, "tgs timeout") {
			t.Errorf("Status = %q, want probe error folded in", status.Status)
		}
	})
}
