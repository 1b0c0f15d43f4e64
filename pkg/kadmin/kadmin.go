// Package kadmin provides administrative access to a Kerberos realm.
//
// A Session is authenticated with exactly one of password, keytab, or
// credentials cache. Existence probes and self password changes speak
// plain Kerberos (TGS and kpasswd); principal enumeration and
// administrative password sets require the directory backing the KDC
// (FreeIPA, Active Directory) and are available when the session is
// opened with directory options.
package kadmin

import (
	"context"
	"errors"
	"fmt"

	krb5config "github.com/jcmturner/gokrb5/v8/config"
)

var (
	// ErrNotConfigured is returned when no sync principal or credential
	// is configured. Callers treat it as "no connection", not a failure.
	ErrNotConfigured = errors.New("kadmin: no sync credentials configured")

	// ErrConfiguration marks malformed credential material: undecodable
	// keytabs or unsupported credential references.
	ErrConfiguration = errors.New("kadmin: invalid credential configuration")

	// ErrNotSupported is returned for operations the session's transport
	// cannot express, e.g. enumeration without a directory connection.
	ErrNotSupported = errors.New("kadmin: operation not supported by this connection")
)

// Principal is a named identity within a realm.
type Principal struct {
	Name  string
	Realm string
}

// String returns the principal in name@REALM form.
func (p Principal) String() string {
	if p.Realm == "" {
		return p.Name
	}
	return p.Name + "@" + p.Realm
}

// ParsePrincipal splits a name@REALM string.
func ParsePrincipal(s string) Principal {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '@' {
			return Principal{Name: s[:i], Realm: s[i+1:]}
		}
	}
	return Principal{Name: s}
}

// Client is an authenticated administrative session against a realm.
//
// Implementations are not required to be safe for concurrent use; the
// connection pool serializes access per source.
type Client interface {
	// PrincipalExists reports whether the named principal exists in the
	// realm.
	PrincipalExists(ctx context.Context, principal string) (bool, error)

	// ListPrincipals enumerates realm principals. An empty filter
	// matches all user principals. Returns ErrNotSupported when the
	// session has no directory connection.
	ListPrincipals(ctx context.Context, filter string) ([]Principal, error)

	// SetPassword sets the password of the named principal. Changing
	// the session's own principal uses the kpasswd protocol; any other
	// principal requires a directory connection.
	SetPassword(ctx context.Context, principal, password string) error

	// Close tears down the session and its network connections.
	Close() error
}

// DirectoryOptions configure the LDAP directory backing the KDC.
type DirectoryOptions struct {
	// URL of the directory server, e.g. ldaps://ipa.example.com.
	URL string

	// BindDN and BindPassword authenticate the directory connection.
	BindDN       string
	BindPassword string

	// BaseDN scopes principal searches.
	BaseDN string
}

// Options describe how to open an administrative session.
type Options struct {
	// Principal authenticates the session, e.g. sync/admin@EXAMPLE.COM.
	// Empty means the source has sync disabled.
	Principal string

	// Realm is the Kerberos realm to administer.
	Realm string

	// Exactly one credential is used, in this precedence order.
	Password  string
	KeytabRef string // TYPE:residual, FILE only
	CCacheRef string // TYPE:residual, FILE only

	// Krb5Conf is the parsed realm configuration for this source. Nil
	// falls back to the host /etc/krb5.conf.
	Krb5Conf *krb5config.Config

	// Directory optionally enables enumeration and administrative
	// password sets.
	Directory *DirectoryOptions
}

// Connect opens an administrative session per the options. It returns
// ErrNotConfigured when no principal or no credential is set, and a
// wrapped ErrConfiguration for malformed credential references.
func Connect(ctx context.Context, opts Options) (Client, error) {
	if opts.Principal == "" {
		return nil, ErrNotConfigured
	}

	sess, err := newKrb5Session(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.Directory != nil && opts.Directory.URL != "" {
		dir, err := dialDirectory(opts.Directory)
		if err != nil {
			sess.Close()
			return nil, fmt.Errorf("kadmin: directory connection: %w", err)
		}
		sess.directory = dir
	}

	return sess, nil
}
