package kerberos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/realmsync/realmsync/internal/logger"
	"github.com/realmsync/realmsync/pkg/kadmin"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/secrets"
)

// SyncResult summarizes one sync pass.
type SyncResult struct {
	Principals         int           `json:"principals"`
	UsersCreated       int           `json:"users_created"`
	ConnectionsCreated int           `json:"connections_created"`
	Skipped            int           `json:"skipped"`
	PasswordsPushed    int           `json:"passwords_pushed"`
	PushFailures       int           `json:"push_failures"`
	Duration           time.Duration `json:"duration"`
}

// Sync runs one full pass for a source: connect, enumerate principals,
// reconcile users and connections, then drain staged password changes
// upstream. A failed step aborts the remaining steps.
func (e *Engine) Sync(ctx context.Context, src *models.Source) (*SyncResult, error) {
	if !src.SyncEnabled() {
		return nil, ErrSyncDisabled
	}

	start := time.Now()
	result := &SyncResult{}

	err := e.sync(ctx, src, result)
	result.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	if e.metrics != nil {
		e.metrics.RecordPass(src.Slug, status, result.Duration)
	}

	if err != nil {
		return result, err
	}
	logger.Info("sync pass complete",
		"source", src.Slug,
		"principals", result.Principals,
		"users_created", result.UsersCreated,
		"passwords_pushed", result.PasswordsPushed,
		"duration", result.Duration)
	return result, nil
}

func (e *Engine) sync(ctx context.Context, src *models.Source, result *SyncResult) error {
	cl, err := e.pool.Get(ctx, src)
	if err != nil {
		return fmt.Errorf("connect to source %s: %w", src.Slug, err)
	}

	principals, err := cl.ListPrincipals(ctx, "")
	if err != nil {
		return fmt.Errorf("enumerate principals for source %s: %w", src.Slug, err)
	}
	result.Principals = len(principals)
	if e.metrics != nil {
		e.metrics.RecordPrincipals(src.Slug, len(principals))
	}

	for _, principal := range principals {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.reconcilePrincipal(ctx, src, principal, result); err != nil {
			return fmt.Errorf("reconcile %s: %w", principal, err)
		}
	}

	return e.drainPasswordChanges(ctx, src, cl, result)
}

// reconcilePrincipal ensures a local user and a source connection exist
// for one enumerated principal. Service principals (instance-qualified
// names like host/kdc.example.com) are skipped.
func (e *Engine) reconcilePrincipal(ctx context.Context, src *models.Source, principal kadmin.Principal, result *SyncResult) error {
	if strings.Contains(principal.Name, "/") {
		result.Skipped++
		return nil
	}

	username := principal.Name
	user, err := e.store.GetUser(ctx, username)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		user = &models.User{
			Username: username,
			Enabled:  true,
			Role:     string(models.RoleUser),
		}
		if src.SyncGuessEmail {
			user.Email = guessEmail(principal)
		}
		if _, err := e.store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user %s: %w", username, err)
		}
		result.UsersCreated++
		logger.Debug("created user from principal", "source", src.Slug, "username", username)
	case err != nil:
		return fmt.Errorf("look up user %s: %w", username, err)
	}

	identifier := principal.String()
	_, err = e.store.GetConnection(ctx, src.ID, identifier)
	switch {
	case errors.Is(err, models.ErrConnectionNotFound):
		conn := &models.UserSourceConnection{
			UserID:     user.ID,
			SourceID:   src.ID,
			Identifier: identifier,
		}
		if _, err := e.store.CreateConnection(ctx, conn); err != nil {
			return fmt.Errorf("create connection for %s: %w", identifier, err)
		}
		result.ConnectionsCreated++
	case err != nil:
		return fmt.Errorf("look up connection for %s: %w", identifier, err)
	}

	return nil
}

// drainPasswordChanges pushes staged local password changes upstream
// and deletes each staged row on success. No-op for sources with
// password push-back turned off. A push failure for one principal does
// not block the others; the row stays staged for the next pass.
func (e *Engine) drainPasswordChanges(ctx context.Context, src *models.Source, cl kadmin.Client, result *SyncResult) error {
	if e.cfg.SecretsKey == nil || !src.SyncUsersPassword {
		return nil
	}

	changes, err := e.store.ListPasswordChanges(ctx, src.ID)
	if err != nil {
		return fmt.Errorf("list staged password changes: %w", err)
	}

	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}

		plaintext, err := secrets.Open(e.cfg.SecretsKey, change.Sealed)
		if err != nil {
			// Sealed under a rotated key; unrecoverable, drop it.
			logger.Warn("dropping undecryptable staged password change",
				"source", src.Slug, "identifier", change.Identifier, "error", err)
			if err := e.store.DeletePasswordChange(ctx, change.ID); err != nil {
				return fmt.Errorf("delete staged change: %w", err)
			}
			continue
		}

		err = cl.SetPassword(ctx, change.Identifier, string(plaintext))
		if e.metrics != nil {
			e.metrics.RecordPasswordPush(src.Slug, err)
		}
		if err != nil {
			result.PushFailures++
			logger.Warn("password push failed",
				"source", src.Slug, "identifier", change.Identifier, "error", err)
			continue
		}

		if err := e.store.DeletePasswordChange(ctx, change.ID); err != nil {
			return fmt.Errorf("delete staged change: %w", err)
		}
		result.PasswordsPushed++
	}

	return nil
}

// ChangePassword updates a user's local password and stages the
// plaintext for push-back to every connected source that has password
// push-back enabled. An
// immediate push is attempted; sources that cannot be reached keep the
// staged change for the next sync pass.
func (e *Engine) ChangePassword(ctx context.Context, username, password string) error {
	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := e.store.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}

	if e.cfg.SecretsKey == nil {
		return nil
	}

	user, err := e.store.GetUser(ctx, username)
	if err != nil {
		return err
	}

	sources, err := e.store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	for _, src := range sources {
		if !src.SyncEnabled() || !src.SyncUsersPassword {
			continue
		}

		conns, err := e.store.ListConnections(ctx, src.ID)
		if err != nil {
			return fmt.Errorf("list connections for source %s: %w", src.Slug, err)
		}

		for _, conn := range conns {
			if conn.UserID != user.ID {
				continue
			}

			sealed, err := secrets.Seal(e.cfg.SecretsKey, []byte(password))
			if err != nil {
				return fmt.Errorf("seal password change: %w", err)
			}
			change := &models.PasswordChange{
				SourceID:   src.ID,
				Identifier: conn.Identifier,
				Sealed:     sealed,
			}
			if err := e.store.StagePasswordChange(ctx, change); err != nil {
				return fmt.Errorf("stage password change: %w", err)
			}

			e.pushNow(ctx, src, conn.Identifier, password, change.ID)
		}
	}

	return nil
}

// pushNow attempts an immediate upstream push of a freshly staged
// change. Failures are logged only; the staged row remains.
func (e *Engine) pushNow(ctx context.Context, src *models.Source, identifier, password, changeID string) {
	cl, err := e.pool.Get(ctx, src)
	if err != nil {
		logger.Warn("deferred password push: source unreachable",
			"source", src.Slug, "identifier", identifier, "error", err)
		return
	}

	err = cl.SetPassword(ctx, identifier, password)
	if e.metrics != nil {
		e.metrics.RecordPasswordPush(src.Slug, err)
	}
	if err != nil {
		logger.Warn("deferred password push: upstream write failed",
			"source", src.Slug, "identifier", identifier, "error", err)
		return
	}

	if err := e.store.DeletePasswordChange(ctx, changeID); err != nil {
		logger.Warn("failed to clear pushed password change",
			"source", src.Slug, "identifier", identifier, "error", err)
	}
}

// guessEmail derives a best-effort address from a user principal:
// the principal's short name at the lowercased realm.
func guessEmail(p kadmin.Principal) string {
	if p.Realm == "" {
		return ""
	}
	return p.Name + "@" + strings.ToLower(p.Realm)
}
