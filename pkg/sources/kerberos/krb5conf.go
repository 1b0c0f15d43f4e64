package kerberos

import (
	"fmt"
	"os"
	"path/filepath"

	krb5config "github.com/jcmturner/gokrb5/v8/config"

	"github.com/realmsync/realmsync/pkg/models"
)

const krb5ConfEnv = "KRB5_CONFIG"

// ConfScope materializes a source's Kerberos configuration for the
// duration of a connection attempt. The parsed configuration is handed
// to the library client directly; the KRB5_CONFIG environment variable
// is additionally pointed at the rendered file so external helpers
// spawned inside the scope resolve the same realm, and restored to its
// previous state (including absence) on Close.
type ConfScope struct {
	config *krb5config.Config
	path   string

	envSet   bool
	envPrev  string
	envWas   bool
	restored bool
}

// newConfScope renders src.Krb5Conf into the source's scratch directory
// and parses it. A source without configuration text yields a scope
// with a nil config, leaving the library to fall back to system
// defaults.
func newConfScope(scratchRoot string, src *models.Source) (*ConfScope, error) {
	scope := &ConfScope{}

	if src.Krb5Conf == "" {
		return scope, nil
	}

	cfg, err := krb5config.NewFromString(src.Krb5Conf)
	if err != nil {
		return nil, fmt.Errorf("parse krb5 configuration for source %s: %w", src.Slug, err)
	}
	scope.config = cfg

	dir := sourceScratchDir(scratchRoot, src.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "krb5.conf")
	if err := os.WriteFile(path, []byte(src.Krb5Conf), 0o600); err != nil {
		return nil, fmt.Errorf("write krb5 configuration %s: %w", path, err)
	}
	scope.path = path

	scope.envPrev, scope.envWas = os.LookupEnv(krb5ConfEnv)
	if err := os.Setenv(krb5ConfEnv, path); err != nil {
		return nil, fmt.Errorf("set %s: %w", krb5ConfEnv, err)
	}
	scope.envSet = true

	return scope, nil
}

// Config returns the parsed configuration, or nil when the source
// carries none.
func (s *ConfScope) Config() *krb5config.Config {
	return s.config
}

// Path returns the rendered configuration file path, or empty when the
// source carries none.
func (s *ConfScope) Path() string {
	return s.path
}

// Close restores KRB5_CONFIG to its prior state. Safe to call more
// than once.
func (s *ConfScope) Close() error {
	if s.restored || !s.envSet {
		s.restored = true
		return nil
	}
	s.restored = true

	if s.envWas {
		return os.Setenv(krb5ConfEnv, s.envPrev)
	}
	return os.Unsetenv(krb5ConfEnv)
}
