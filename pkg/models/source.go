package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Source is a federated external Kerberos realm.
//
// Exactly one of SyncPassword, SyncKeytab, SyncCCache is meaningfully
// populated at a time; precedence when several are set is password >
// keytab > ccache. An empty SyncPrincipal disables synchronization for
// the source.
type Source struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Name string `gorm:"not null;size:255" json:"name"`
	Slug string `gorm:"uniqueIndex;not null;size:255" json:"slug"`

	// Realm is the Kerberos realm name, globally unique across sources.
	Realm string `gorm:"uniqueIndex;not null" json:"realm"`

	// Krb5Conf is the optional krb5.conf content used for all realm
	// operations against this source. Empty means the host default.
	Krb5Conf string `json:"krb5_conf,omitempty"`

	Enabled              bool `json:"enabled"`
	PasswordLoginEnabled bool `json:"password_login_enabled"`

	// SyncUsers enables principal enumeration and reconciliation.
	SyncUsers bool `json:"sync_users"`

	// SyncGuessEmail derives an email address from principal and realm
	// for users created by sync.
	SyncGuessEmail bool `json:"sync_guess_email"`

	// SyncUsersPassword pushes local password changes back to the realm.
	SyncUsersPassword bool `json:"sync_users_password"`

	// SyncPrincipal is the principal used to authenticate the
	// administrative connection.
	SyncPrincipal string `json:"sync_principal,omitempty"`

	// SyncPassword authenticates SyncPrincipal with a password.
	SyncPassword string `json:"-"`

	// SyncKeytab authenticates SyncPrincipal with a keytab. Either a
	// TYPE:residual reference or a base64-encoded raw keytab.
	SyncKeytab string `json:"-"`

	// SyncCCache authenticates SyncPrincipal with a credentials cache
	// in TYPE:residual form.
	SyncCCache string `json:"-"`

	// DirectoryURL optionally points at the directory backing the KDC
	// (FreeIPA, Active Directory). Required for principal enumeration
	// and administrative password sets, which the plain Kerberos
	// protocol cannot express.
	DirectoryURL          string `json:"directory_url,omitempty"`
	DirectoryBindDN       string `json:"directory_bind_dn,omitempty"`
	DirectoryBindPassword string `json:"-"`
	DirectoryBaseDN       string `json:"directory_base_dn,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Source.
func (Source) TableName() string {
	return "sources"
}

// Validate checks that the source is well-formed enough to persist.
func (s *Source) Validate() error {
	if s.Realm == "" {
		return fmt.Errorf("source realm is required")
	}
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if s.Slug == "" {
		return fmt.Errorf("source slug is required")
	}
	return nil
}

// SyncEnabled reports whether a sync pass can run for this source.
func (s *Source) SyncEnabled() bool {
	return s.Enabled && s.SyncUsers
}

// Slugify derives a URL- and lock-name-safe slug from a display name.
// Runs of non-alphanumeric characters collapse to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // trim leading hyphens
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
