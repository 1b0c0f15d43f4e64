// Package kerberos implements synchronization against Kerberos identity
// sources: connection health checks, cached per-source admin sessions,
// cross-process sync coordination, and the sync pass itself.
package kerberos

import (
	"context"
	"errors"
	"fmt"

	"github.com/realmsync/realmsync/pkg/kadmin"
	"github.com/realmsync/realmsync/pkg/metrics"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/secrets"
	"github.com/realmsync/realmsync/pkg/store"
)

// ErrSyncDisabled is returned when a sync pass is requested for a
// source that is disabled or has user synchronization turned off.
var ErrSyncDisabled = errors.New("kerberos: sync is disabled for this source")

// Config carries engine-wide settings.
type Config struct {
	// ScratchRoot is where rendered krb5.conf files and decoded
	// keytabs live. Empty means the system temp directory.
	ScratchRoot string

	// Tenant namespaces sync lock names. Empty means "default".
	Tenant string

	// TaskTimeoutHours bounds one sync pass; the sync lock expires
	// after three times this value.
	TaskTimeoutHours int

	// SecretsKey unseals staged password changes for push-back. Nil
	// disables push-back.
	SecretsKey *[secrets.KeySize]byte
}

// Engine drives connection checks and sync passes for Kerberos
// sources.
type Engine struct {
	store   store.Store
	pool    *ConnectionPool
	cfg     Config
	metrics metrics.SyncMetrics
}

// NewEngine returns an engine with a fresh connection pool dialing
// real admin sessions.
func NewEngine(st store.Store, cfg Config, m metrics.SyncMetrics) *Engine {
	if cfg.Tenant == "" {
		cfg.Tenant = "default"
	}
	e := &Engine{store: st, cfg: cfg, metrics: m}
	e.pool = NewConnectionPool(e.connectSource)
	return e
}

// NewEngineWithPool returns an engine backed by an existing pool.
func NewEngineWithPool(st store.Store, cfg Config, pool *ConnectionPool, m metrics.SyncMetrics) *Engine {
	if cfg.Tenant == "" {
		cfg.Tenant = "default"
	}
	return &Engine{store: st, cfg: cfg, pool: pool, metrics: m}
}

// Pool returns the engine's connection pool.
func (e *Engine) Pool() *ConnectionPool {
	return e.pool
}

// Close tears down every cached admin session.
func (e *Engine) Close() error {
	return e.pool.CloseAll()
}

// connectSource establishes an admin session for a source: its realm
// configuration is rendered into scope, its credentials resolved by
// precedence, and the session dialed.
func (e *Engine) connectSource(ctx context.Context, src *models.Source) (kadmin.Client, error) {
	scope, err := newConfScope(e.cfg.ScratchRoot, src)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	opts, err := resolveCredentials(e.cfg.ScratchRoot, src)
	if err != nil {
		return nil, err
	}
	opts.Krb5Conf = scope.Config()

	return kadmin.Connect(ctx, opts)
}

// Status is the outcome of a connection check. It is always populated;
// failures are folded into the status text rather than returned as
// errors so health endpoints and CLI output render uniformly.
type Status struct {
	Status          string `json:"status"`
	PrincipalExists *bool  `json:"principal_exists,omitempty"`
}

// CheckConnection probes the admin session for a source. Sources with
// user synchronization off report "ok" without dialing anything; a
// source with no credentials configured reports "no connection".
func (e *Engine) CheckConnection(ctx context.Context, src *models.Source) Status {
	if !src.SyncUsers {
		return Status{Status: "ok"}
	}

	cl, err := e.pool.Get(ctx, src)
	if errors.Is(err, kadmin.ErrNotConfigured) {
		return Status{Status: "no connection"}
	}
	if err != nil {
		return Status{Status: fmt.Sprintf("connection error: %v", err)}
	}

	exists, err := cl.PrincipalExists(ctx, src.SyncPrincipal)
	if err != nil {
		return Status{Status: fmt.Sprintf("principal lookup error: %v", err)}
	}
	return Status{Status: "ok", PrincipalExists: &exists}
}
