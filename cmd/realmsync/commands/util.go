package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realmsync/realmsync/internal/cli/output"
	"github.com/realmsync/realmsync/internal/logger"
	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/lock"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/secrets"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
	"github.com/realmsync/realmsync/pkg/store"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// printResult renders a command result per the --output flag.
func printResult(data any) error {
	f, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return output.Print(os.Stdout, f, data)
}

// printList renders a listing as a table, or as the raw records for
// structured formats.
func printList(data any, table output.TableRenderer) error {
	f, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if f == output.FormatTable {
		return output.PrintTable(os.Stdout, table)
	}
	return output.Print(os.Stdout, f, data)
}

// openStore connects to the identity database.
func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	return st, nil
}

// secretsKey parses the configured secrets key, or returns nil when
// push-back is disabled.
func secretsKey(cfg *config.Config) (*[secrets.KeySize]byte, error) {
	if cfg.Secrets.Key == "" {
		return nil, nil
	}
	key, err := secrets.ParseKey(cfg.Secrets.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid secrets key: %w", err)
	}
	return key, nil
}

// engineConfig maps the service configuration onto engine settings.
func engineConfig(cfg *config.Config) (kerberos.Config, error) {
	key, err := secretsKey(cfg)
	if err != nil {
		return kerberos.Config{}, err
	}
	return kerberos.Config{
		ScratchRoot:      cfg.Kerberos.ScratchDir,
		Tenant:           cfg.Kerberos.Tenant,
		TaskTimeoutHours: cfg.Kerberos.TaskTimeoutHours,
		SecretsKey:       key,
	}, nil
}

// newLocker creates the configured sync lock backend. The returned
// cleanup function releases backend resources.
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.Postgres.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect lock backend: %w", err)
		}
		locker, err := lock.NewPostgresLocker(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to initialize lock backend: %w", err)
		}
		return locker, pool.Close, nil
	default:
		return lock.NewMemoryLocker(), func() {}, nil
	}
}

// resolveSource finds a source by slug first, then by realm.
func resolveSource(ctx context.Context, st store.Store, nameOrRealm string) (*models.Source, error) {
	src, err := st.GetSource(ctx, nameOrRealm)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, models.ErrSourceNotFound) {
		return nil, err
	}

	src, err = st.GetSourceByRealm(ctx, nameOrRealm)
	if err != nil {
		if errors.Is(err, models.ErrSourceNotFound) {
			return nil, fmt.Errorf("no source with slug or realm %q", nameOrRealm)
		}
		return nil, err
	}
	return src, nil
}
