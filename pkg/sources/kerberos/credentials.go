package kerberos

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/realmsync/realmsync/pkg/kadmin"
	"github.com/realmsync/realmsync/pkg/models"
)

// sourceScratchDir returns the per-source scratch directory, namespaced
// by product and subsystem: <root>/realmsync/sources/kerberos/<id>.
func sourceScratchDir(root, sourceID string) string {
	if root == "" {
		root = os.TempDir()
	}
	return filepath.Join(root, "realmsync", "sources", "kerberos", sourceID)
}

// resolveCredentials maps a source's credential fields onto kadmin
// connection options. Precedence is password > keytab > ccache; a
// source without a sync principal yields kadmin.ErrNotConfigured.
//
// A keytab value containing the TYPE:residual delimiter is passed
// through verbatim. Anything else is treated as a base64-encoded raw
// keytab: decoded, persisted to the source's scratch directory, and
// referenced as FILE:<path>.
func resolveCredentials(scratchRoot string, src *models.Source) (kadmin.Options, error) {
	opts := kadmin.Options{
		Principal: src.SyncPrincipal,
		Realm:     src.Realm,
	}

	if src.SyncPrincipal == "" {
		return opts, kadmin.ErrNotConfigured
	}

	if src.DirectoryURL != "" {
		opts.Directory = &kadmin.DirectoryOptions{
			URL:          src.DirectoryURL,
			BindDN:       src.DirectoryBindDN,
			BindPassword: src.DirectoryBindPassword,
			BaseDN:       src.DirectoryBaseDN,
		}
	}

	switch {
	case src.SyncPassword != "":
		opts.Password = src.SyncPassword

	case src.SyncKeytab != "":
		ref, err := resolveKeytab(scratchRoot, src)
		if err != nil {
			return opts, err
		}
		opts.KeytabRef = ref

	case src.SyncCCache != "":
		opts.CCacheRef = src.SyncCCache

	default:
		return opts, kadmin.ErrNotConfigured
	}

	return opts, nil
}

// resolveKeytab returns a TYPE:residual keytab reference, materializing
// base64 keytab content to disk when needed.
func resolveKeytab(scratchRoot string, src *models.Source) (string, error) {
	if strings.Contains(src.SyncKeytab, ":") {
		return src.SyncKeytab, nil
	}

	raw, err := base64.StdEncoding.DecodeString(src.SyncKeytab)
	if err != nil {
		return "", fmt.Errorf("%w: decode keytab for source %s: %v", kadmin.ErrConfiguration, src.Slug, err)
	}

	dir := sourceScratchDir(scratchRoot, src.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create scratch directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "keytab")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("write keytab %s: %w", path, err)
	}

	return "FILE:" + path, nil
}
