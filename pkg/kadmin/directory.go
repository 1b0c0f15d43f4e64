package kadmin

import (
	"context"
	"fmt"
	"strings"

	ldapv3 "github.com/go-ldap/ldap/v3"
)

// Principal name attributes, in preference order. krbPrincipalName
// covers MIT/FreeIPA-style directories, userPrincipalName covers
// Active Directory.
var principalAttributes = []string{"krbPrincipalName", "userPrincipalName"}

// directoryConn wraps the LDAP connection to the directory backing a
// KDC. It supplies the operations the plain Kerberos protocol cannot
// express: principal enumeration and administrative password sets.
type directoryConn struct {
	conn   *ldapv3.Conn
	baseDN string
}

// dialDirectory connects and binds to the directory per the options.
func dialDirectory(opts *DirectoryOptions) (*directoryConn, error) {
	conn, err := ldapv3.DialURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	if opts.BindDN != "" {
		if err := conn.Bind(opts.BindDN, opts.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind as %s: %w", opts.BindDN, err)
		}
	}

	return &directoryConn{conn: conn, baseDN: opts.BaseDN}, nil
}

// listPrincipals searches the directory for entries carrying a
// principal name in the given realm.
func (d *directoryConn) listPrincipals(ctx context.Context, realm, filter string) ([]Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchFilter := "(|(krbPrincipalName=*)(userPrincipalName=*))"
	if filter != "" {
		searchFilter = fmt.Sprintf(
			"(|(krbPrincipalName=%s)(userPrincipalName=%s))",
			ldapv3.EscapeFilter(filter), ldapv3.EscapeFilter(filter),
		)
	}

	req := ldapv3.NewSearchRequest(d.baseDN,
		ldapv3.ScopeWholeSubtree, ldapv3.NeverDerefAliases, 0, 0, false,
		searchFilter, principalAttributes, nil)

	result, err := d.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("principal search: %w", err)
	}

	var principals []Principal
	seen := make(map[string]struct{})
	for _, entry := range result.Entries {
		name := principalFromEntry(entry)
		if name == "" {
			continue
		}
		p := ParsePrincipal(name)
		if p.Realm == "" {
			p.Realm = realm
		}
		// Entries from another realm's subtree are not ours to sync.
		if !strings.EqualFold(p.Realm, realm) {
			continue
		}
		if _, ok := seen[p.String()]; ok {
			continue
		}
		seen[p.String()] = struct{}{}
		principals = append(principals, p)
	}
	return principals, nil
}

// principalFromEntry picks the first populated principal attribute.
func principalFromEntry(entry *ldapv3.Entry) string {
	for _, attr := range principalAttributes {
		if v := entry.GetAttributeValue(attr); v != "" {
			return v
		}
	}
	return ""
}

// setPassword locates the principal's entry and replaces its password
// attribute.
func (d *directoryConn) setPassword(ctx context.Context, realm string, target Principal, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full := target
	if full.Realm == "" {
		full.Realm = realm
	}

	searchFilter := fmt.Sprintf(
		"(|(krbPrincipalName=%s)(userPrincipalName=%s))",
		ldapv3.EscapeFilter(full.String()), ldapv3.EscapeFilter(full.String()),
	)
	req := ldapv3.NewSearchRequest(d.baseDN,
		ldapv3.ScopeWholeSubtree, ldapv3.NeverDerefAliases, 2, 0, false,
		searchFilter, []string{"dn"}, nil)

	result, err := d.conn.Search(req)
	if err != nil {
		return fmt.Errorf("locate %s: %w", full, err)
	}
	if len(result.Entries) == 0 {
		return fmt.Errorf("principal %s not found in directory", full)
	}
	if len(result.Entries) > 1 {
		return fmt.Errorf("principal %s matches multiple directory entries", full)
	}

	modify := ldapv3.NewModifyRequest(result.Entries[0].DN, nil)
	modify.Replace("userPassword", []string{password})
	if err := d.conn.Modify(modify); err != nil {
		return fmt.Errorf("set password for %s: %w", full, err)
	}
	return nil
}

func (d *directoryConn) close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
