package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/realmsync/realmsync/pkg/models"
)

func (s *GORMStore) GetConnection(ctx context.Context, sourceID, identifier string) (*models.UserSourceConnection, error) {
	var conn models.UserSourceConnection
	err := s.db.WithContext(ctx).
		Where("source_id = ? AND identifier = ?", sourceID, identifier).
		First(&conn).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrConnectionNotFound)
	}
	return &conn, nil
}

func (s *GORMStore) ListConnections(ctx context.Context, sourceID string) ([]*models.UserSourceConnection, error) {
	conns := []*models.UserSourceConnection{}
	err := s.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (s *GORMStore) CreateConnection(ctx context.Context, conn *models.UserSourceConnection) (string, error) {
	return createWithID(s.db, ctx, conn, func(c *models.UserSourceConnection, id string) { c.ID = id }, conn.ID, models.ErrDuplicateConnection)
}

func (s *GORMStore) UpdateConnection(ctx context.Context, conn *models.UserSourceConnection) error {
	var existing models.UserSourceConnection
	if err := s.db.WithContext(ctx).Where("id = ?", conn.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrConnectionNotFound)
	}

	return s.db.WithContext(ctx).
		Model(&existing).
		Select("UserID", "Identifier").
		Updates(conn).Error
}

func (s *GORMStore) DeleteConnection(ctx context.Context, sourceID, identifier string) error {
	result := s.db.WithContext(ctx).
		Where("source_id = ? AND identifier = ?", sourceID, identifier).
		Delete(&models.UserSourceConnection{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrConnectionNotFound
	}
	return nil
}

// StagePasswordChange upserts the staged change for (source, identifier);
// a later local password change supersedes an unpushed earlier one. On
// conflict the existing row keeps its ID, so the persisted ID is read
// back into change for callers that delete by it.
func (s *GORMStore) StagePasswordChange(ctx context.Context, change *models.PasswordChange) error {
	if change.ID == "" {
		change.ID = newID()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}, {Name: "identifier"}},
			DoUpdates: clause.AssignmentColumns([]string{"sealed", "created_at"}),
		}).
		Create(change).Error
	if err != nil {
		return err
	}

	persisted := &models.PasswordChange{}
	err = s.db.WithContext(ctx).
		Where("source_id = ? AND identifier = ?", change.SourceID, change.Identifier).
		First(persisted).Error
	if err != nil {
		return err
	}
	change.ID = persisted.ID
	return nil
}

func (s *GORMStore) ListPasswordChanges(ctx context.Context, sourceID string) ([]*models.PasswordChange, error) {
	changes := []*models.PasswordChange{}
	err := s.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("created_at asc").
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *GORMStore) DeletePasswordChange(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.PasswordChange{}).Error
}
