package kerberos

import (
	"context"
	"fmt"
	"time"

	"github.com/realmsync/realmsync/internal/logger"
	"github.com/realmsync/realmsync/pkg/lock"
	"github.com/realmsync/realmsync/pkg/models"
)

// Coordinator serializes sync passes per source across every process
// sharing the same lock backend.
type Coordinator struct {
	locker           lock.Locker
	tenant           string
	taskTimeoutHours int
}

// NewCoordinator returns a coordinator scoped to the given tenant.
func NewCoordinator(locker lock.Locker, tenant string, taskTimeoutHours int) *Coordinator {
	return &Coordinator{
		locker:           locker,
		tenant:           tenant,
		taskTimeoutHours: taskTimeoutHours,
	}
}

// SyncLockName returns the lock name guarding a source's sync pass.
// The name binds tenant and source slug so distinct tenants never
// contend.
func SyncLockName(tenant, slug string) string {
	return fmt.Sprintf("realmsync/sources/kerberos/sync/%s-%s", tenant, slug)
}

// LockTimeout returns how long a sync lock may be held before it is
// considered abandoned: three times the configured task timeout.
func LockTimeout(taskTimeoutHours int) time.Duration {
	return 3 * time.Duration(taskTimeoutHours) * time.Hour
}

// RunExclusive acquires the source's sync lock and runs fn while
// holding it. If another pass holds the lock, lock.ErrNotAcquired is
// returned without waiting.
func (c *Coordinator) RunExclusive(ctx context.Context, src *models.Source, fn func(ctx context.Context) error) error {
	name := SyncLockName(c.tenant, src.Slug)

	lease, err := c.locker.Acquire(ctx, name, LockTimeout(c.taskTimeoutHours))
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			logger.Warn("failed to release sync lock", "lock", name, "error", err)
		}
	}()

	return fn(ctx)
}
