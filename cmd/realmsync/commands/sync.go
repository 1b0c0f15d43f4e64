package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/lock"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
)

var syncCmd = &cobra.Command{
	Use:   "sync <source>",
	Short: "Run a sync pass for a source",
	Long: `Run one full sync pass for a Kerberos source: connect, enumerate
realm principals, reconcile local users and connections, and push staged
password changes upstream.

The pass takes the same cross-process lock the service scheduler uses,
so it cannot overlap a scheduled pass for the same source.

Examples:
  realmsync sync EXAMPLE.COM
  realmsync sync example-com`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	src, err := resolveSource(ctx, st, args[0])
	if err != nil {
		return err
	}

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	engine := kerberos.NewEngine(st, engCfg, nil)
	defer engine.Close()

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	coord := kerberos.NewCoordinator(locker, cfg.Kerberos.Tenant, cfg.Kerberos.TaskTimeoutHours)

	var result *kerberos.SyncResult
	err = coord.RunExclusive(ctx, src, func(ctx context.Context) error {
		var syncErr error
		result, syncErr = engine.Sync(ctx, src)
		return syncErr
	})
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		return fmt.Errorf("a sync pass for %s is already running", src.Slug)
	case errors.Is(err, kerberos.ErrSyncDisabled):
		return fmt.Errorf("sync is disabled for source %s", src.Slug)
	case err != nil:
		return err
	}

	return printResult(result)
}
