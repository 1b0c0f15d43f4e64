package kadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/iana/errorcode"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
)

// krb5Session implements Client on top of a gokrb5 client, with an
// optional directory connection for the operations plain Kerberos
// cannot express.
type krb5Session struct {
	cl        *client.Client
	principal Principal
	realm     string
	directory *directoryConn
}

// newKrb5Session authenticates with the highest-precedence credential:
// password, then keytab, then ccache.
func newKrb5Session(ctx context.Context, opts Options) (*krb5Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	principal := ParsePrincipal(opts.Principal)
	realm := opts.Realm
	if realm == "" {
		realm = principal.Realm
	}

	conf := opts.Krb5Conf
	if conf == nil {
		var err error
		conf, err = krb5config.Load("/etc/krb5.conf")
		if err != nil {
			return nil, fmt.Errorf("kadmin: load host krb5.conf: %w", err)
		}
	}

	var cl *client.Client
	needLogin := true
	switch {
	case opts.Password != "":
		cl = client.NewWithPassword(principal.Name, realm, opts.Password, conf,
			client.DisablePAFXFAST(true))

	case opts.KeytabRef != "":
		kt, err := loadKeytabRef(opts.KeytabRef)
		if err != nil {
			return nil, err
		}
		cl = client.NewWithKeytab(principal.Name, realm, kt, conf,
			client.DisablePAFXFAST(true))

	case opts.CCacheRef != "":
		cc, err := loadCCacheRef(opts.CCacheRef)
		if err != nil {
			return nil, err
		}
		var err2 error
		cl, err2 = client.NewFromCCache(cc, conf, client.DisablePAFXFAST(true))
		if err2 != nil {
			return nil, fmt.Errorf("kadmin: client from ccache: %w", err2)
		}
		// The ccache already carries a TGT; an AS exchange would fail
		// without long-term keys.
		needLogin = false

	default:
		return nil, ErrNotConfigured
	}

	if needLogin {
		if err := cl.Login(); err != nil {
			cl.Destroy()
			return nil, fmt.Errorf("kadmin: authenticate %s: %w", opts.Principal, err)
		}
	}

	return &krb5Session{
		cl:        cl,
		principal: Principal{Name: principal.Name, Realm: realm},
		realm:     realm,
	}, nil
}

// loadKeytabRef resolves a TYPE:residual keytab reference.
func loadKeytabRef(ref string) (*keytab.Keytab, error) {
	typ, residual, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, fmt.Errorf("%w: keytab reference %q has no type prefix", ErrConfiguration, ref)
	}
	if !strings.EqualFold(typ, "FILE") {
		return nil, fmt.Errorf("%w: unsupported keytab type %q", ErrConfiguration, typ)
	}
	kt, err := keytab.Load(residual)
	if err != nil {
		return nil, fmt.Errorf("%w: load keytab %s: %v", ErrConfiguration, residual, err)
	}
	return kt, nil
}

// loadCCacheRef resolves a TYPE:residual credentials cache reference.
func loadCCacheRef(ref string) (*credentials.CCache, error) {
	typ, residual, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, fmt.Errorf("%w: ccache reference %q has no type prefix", ErrConfiguration, ref)
	}
	if !strings.EqualFold(typ, "FILE") {
		return nil, fmt.Errorf("%w: unsupported ccache type %q", ErrConfiguration, typ)
	}
	cc, err := credentials.LoadCCache(residual)
	if err != nil {
		return nil, fmt.Errorf("%w: load ccache %s: %v", ErrConfiguration, residual, err)
	}
	return cc, nil
}

// PrincipalExists probes the KDC with a TGS request for the principal.
// An S_PRINCIPAL_UNKNOWN response is a definitive "no"; any granted
// ticket, or a policy error that implies the entry exists, is a "yes".
func (s *krb5Session) PrincipalExists(ctx context.Context, principal string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p := ParsePrincipal(principal)
	_, _, err := s.cl.GetServiceTicket(p.Name)
	if err == nil {
		return true, nil
	}

	var krbErr messages.KRBError
	if errors.As(err, &krbErr) {
		switch krbErr.ErrorCode {
		case errorcode.KDC_ERR_S_PRINCIPAL_UNKNOWN, errorcode.KDC_ERR_C_PRINCIPAL_UNKNOWN:
			return false, nil
		case errorcode.KDC_ERR_MUST_USE_USER2USER, errorcode.KDC_ERR_POLICY:
			// The KDC refused a ticket but the entry exists.
			return true, nil
		}
		return false, fmt.Errorf("kadmin: principal probe %s: %w", principal, err)
	}

	// Some transport paths stringify the KDC error instead of returning
	// the typed value.
	if strings.Contains(err.Error(), "KDC_ERR_S_PRINCIPAL_UNKNOWN") ||
		strings.Contains(err.Error(), "KDC_ERR_C_PRINCIPAL_UNKNOWN") {
		return false, nil
	}
	return false, fmt.Errorf("kadmin: principal probe %s: %w", principal, err)
}

// ListPrincipals enumerates via the directory when one is connected.
func (s *krb5Session) ListPrincipals(ctx context.Context, filter string) ([]Principal, error) {
	if s.directory == nil {
		return nil, fmt.Errorf("%w: enumeration requires a directory connection", ErrNotSupported)
	}
	return s.directory.listPrincipals(ctx, s.realm, filter)
}

// SetPassword changes the session's own password via kpasswd, and any
// other principal's password via the directory.
func (s *krb5Session) SetPassword(ctx context.Context, principal, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := ParsePrincipal(principal)
	if target.Name == s.principal.Name && (target.Realm == "" || target.Realm == s.realm) {
		ok, err := s.cl.ChangePasswd(password)
		if err != nil {
			return fmt.Errorf("kadmin: change password for %s: %w", principal, err)
		}
		if !ok {
			return fmt.Errorf("kadmin: change password for %s: rejected by KDC", principal)
		}
		return nil
	}

	if s.directory == nil {
		return fmt.Errorf("%w: setting another principal's password requires a directory connection", ErrNotSupported)
	}
	return s.directory.setPassword(ctx, s.realm, target, password)
}

// Close destroys the Kerberos session and closes the directory
// connection. Safe to call multiple times.
func (s *krb5Session) Close() error {
	if s.cl != nil {
		s.cl.Destroy()
		s.cl = nil
	}
	if s.directory != nil {
		err := s.directory.close()
		s.directory = nil
		return err
	}
	return nil
}
