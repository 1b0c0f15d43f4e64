// Package store provides the identity persistence layer.
//
// It manages users, federated sources, user-to-source connections, and
// the password push-back staging table.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (multi-node)
package store

import (
	"context"
	"time"

	"github.com/realmsync/realmsync/pkg/models"
)

// Store provides the identity persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines; sync passes and CLI commands may run concurrently.
type Store interface {
	// Source operations

	// GetSource returns a source by its slug.
	// Returns models.ErrSourceNotFound if the source doesn't exist.
	GetSource(ctx context.Context, slug string) (*models.Source, error)

	// GetSourceByID returns a source by its unique ID.
	// Returns models.ErrSourceNotFound if no source has this ID.
	GetSourceByID(ctx context.Context, id string) (*models.Source, error)

	// GetSourceByRealm returns the source federating the given realm.
	// Returns models.ErrSourceNotFound if the realm is not federated.
	GetSourceByRealm(ctx context.Context, realm string) (*models.Source, error)

	// ListSources returns all sources.
	ListSources(ctx context.Context) ([]*models.Source, error)

	// CreateSource creates a new source. The ID is generated if empty
	// and returned. Returns models.ErrDuplicateSource if a source with
	// the same realm or slug already exists.
	CreateSource(ctx context.Context, source *models.Source) (string, error)

	// UpdateSource updates an existing source.
	// Returns models.ErrSourceNotFound if the source doesn't exist.
	UpdateSource(ctx context.Context, source *models.Source) error

	// DeleteSource deletes a source by slug, cascading to its user
	// connections and staged password changes.
	// Returns models.ErrSourceNotFound if the source doesn't exist.
	DeleteSource(ctx context.Context, slug string) error

	// User operations

	// GetUser returns a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user. The ID is generated if empty and
	// returned. Returns models.ErrDuplicateUser on username collision.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// UpdateUser updates an existing user.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser deletes a user by username, cascading to their source
	// connections. Returns models.ErrUserNotFound if absent.
	DeleteUser(ctx context.Context, username string) error

	// UpdatePassword updates a user's password hash.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// UpdateLastLogin updates the user's last login timestamp.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error

	// Source connection operations

	// GetConnection returns the connection for (sourceID, identifier).
	// Returns models.ErrConnectionNotFound if no such link exists.
	GetConnection(ctx context.Context, sourceID, identifier string) (*models.UserSourceConnection, error)

	// ListConnections returns all connections for a source.
	ListConnections(ctx context.Context, sourceID string) ([]*models.UserSourceConnection, error)

	// CreateConnection links a user to a source principal. The ID is
	// generated if empty and returned.
	CreateConnection(ctx context.Context, conn *models.UserSourceConnection) (string, error)

	// UpdateConnection updates an existing connection.
	UpdateConnection(ctx context.Context, conn *models.UserSourceConnection) error

	// DeleteConnection removes the link for (sourceID, identifier).
	// Returns models.ErrConnectionNotFound if no such link exists.
	DeleteConnection(ctx context.Context, sourceID, identifier string) error

	// Password push-back staging

	// StagePasswordChange records a sealed password change for a
	// principal, replacing any previously staged change.
	StagePasswordChange(ctx context.Context, change *models.PasswordChange) error

	// ListPasswordChanges returns staged changes for a source, oldest first.
	ListPasswordChanges(ctx context.Context, sourceID string) ([]*models.PasswordChange, error)

	// DeletePasswordChange removes a staged change after a successful push.
	DeletePasswordChange(ctx context.Context, id string) error

	// Close releases the underlying database resources.
	Close() error
}

// Compile-time check that GORMStore implements Store.
var _ Store = (*GORMStore)(nil)
