package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/realmsync/realmsync/pkg/models"
)

func (s *GORMStore) GetSource(ctx context.Context, slug string) (*models.Source, error) {
	return getByField[models.Source](s.db, ctx, "slug", slug, models.ErrSourceNotFound)
}

func (s *GORMStore) GetSourceByID(ctx context.Context, id string) (*models.Source, error) {
	return getByField[models.Source](s.db, ctx, "id", id, models.ErrSourceNotFound)
}

func (s *GORMStore) GetSourceByRealm(ctx context.Context, realm string) (*models.Source, error) {
	return getByField[models.Source](s.db, ctx, "realm", realm, models.ErrSourceNotFound)
}

func (s *GORMStore) ListSources(ctx context.Context) ([]*models.Source, error) {
	return listAll[models.Source](s.db, ctx)
}

func (s *GORMStore) CreateSource(ctx context.Context, source *models.Source) (string, error) {
	if source.Slug == "" {
		source.Slug = models.Slugify(source.Name)
	}
	if err := source.Validate(); err != nil {
		return "", fmt.Errorf("invalid source: %w", err)
	}
	return createWithID(s.db, ctx, source, func(src *models.Source, id string) { src.ID = id }, source.ID, models.ErrDuplicateSource)
}

func (s *GORMStore) UpdateSource(ctx context.Context, source *models.Source) error {
	var existing models.Source
	if err := s.db.WithContext(ctx).Where("id = ?", source.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrSourceNotFound)
	}

	err := s.db.WithContext(ctx).
		Model(&existing).
		Select("Name", "Slug", "Realm", "Krb5Conf", "Enabled", "PasswordLoginEnabled",
			"SyncUsers", "SyncGuessEmail", "SyncUsersPassword",
			"SyncPrincipal", "SyncPassword", "SyncKeytab", "SyncCCache",
			"DirectoryURL", "DirectoryBindDN", "DirectoryBindPassword", "DirectoryBaseDN").
		Updates(source).Error
	if isUniqueConstraintError(err) {
		return models.ErrDuplicateSource
	}
	return err
}

func (s *GORMStore) DeleteSource(ctx context.Context, slug string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var source models.Source
		if err := tx.Where("slug = ?", slug).First(&source).Error; err != nil {
			return convertNotFoundError(err, models.ErrSourceNotFound)
		}

		if err := tx.Where("source_id = ?", source.ID).Delete(&models.UserSourceConnection{}).Error; err != nil {
			return err
		}
		if err := tx.Where("source_id = ?", source.ID).Delete(&models.PasswordChange{}).Error; err != nil {
			return err
		}

		return tx.Delete(&source).Error
	})
}
