package models

import "time"

// UserSourceConnection links a local user to a principal in a federated
// source. Created on the first successful federated login or when a sync
// pass creates the user; deleted together with the user or the source.
type UserSourceConnection struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	UserID   string `gorm:"index;not null;size:36" json:"user_id"`
	SourceID string `gorm:"uniqueIndex:idx_source_identifier;not null;size:36" json:"source_id"`

	// Identifier is the external principal name, e.g. alice@EXAMPLE.COM.
	Identifier string `gorm:"uniqueIndex:idx_source_identifier;not null" json:"identifier"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Source *Source `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for UserSourceConnection.
func (UserSourceConnection) TableName() string {
	return "user_source_connections"
}

// PasswordChange is one staged password push-back for a federated
// principal. The plaintext is sealed with the configured secrets key; a
// sync pass drains staged changes through the realm administration
// client after reconciliation.
type PasswordChange struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	SourceID string `gorm:"uniqueIndex:idx_pwchange_source_identifier;not null;size:36" json:"source_id"`

	// Identifier is the principal whose password changed.
	Identifier string `gorm:"uniqueIndex:idx_pwchange_source_identifier;not null" json:"identifier"`

	// Sealed is the secretbox-sealed plaintext: 24-byte nonce followed
	// by the ciphertext.
	Sealed []byte `gorm:"not null" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for PasswordChange.
func (PasswordChange) TableName() string {
	return "password_changes"
}
