package kerberos

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/realmsync/realmsync/pkg/kadmin"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/secrets"
)

func TestSyncDisabled(t *testing.T) {
	st := createTestStore(t)
	e := newTestEngine(t, st, newFakeClient())

	src := &models.Source{Enabled: false, SyncUsers: true}
	if _, err := e.Sync(context.Background(), src); !errors.Is(err, ErrSyncDisabled) {
		t.Errorf("Sync() error = %v, want ErrSyncDisabled", err)
	}

	src = &models.Source{Enabled: true, SyncUsers: false}
	if _, err := e.Sync(context.Background(), src); !errors.Is(err, ErrSyncDisabled) {
		t.Errorf("Sync() error = %v, want ErrSyncDisabled", err)
	}
}

func TestSyncReconcilesPrincipals(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(
		kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"},
		kadmin.Principal{Name: "bob", Realm: "EXAMPLE.COM"},
		kadmin.Principal{Name: "host/kdc.example.com", Realm: "EXAMPLE.COM"},
	)
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	result, err := e.Sync(ctx, src)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if result.Principals != 3 {
		t.Errorf("Principals = %d, want 3", result.Principals)
	}
	if result.UsersCreated != 2 {
		t.Errorf("UsersCreated = %d, want 2", result.UsersCreated)
	}
	if result.ConnectionsCreated != 2 {
		t.Errorf("ConnectionsCreated = %d, want 2", result.ConnectionsCreated)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (service principal)", result.Skipped)
	}

	alice, err := st.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser(alice) error = %v", err)
	}
	if alice.Email != "alice@example.com" {
		t.Errorf("guessed email = %q, want alice@example.com", alice.Email)
	}
	if !alice.Enabled {
		t.Error("synced user should be enabled")
	}

	conn, err := st.GetConnection(ctx, src.ID, "alice@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if conn.UserID != alice.ID {
		t.Errorf("connection UserID = %q, want %q", conn.UserID, alice.ID)
	}

	if _, err := st.GetUser(ctx, "host/kdc.example.com"); !errors.Is(err, models.ErrUserNotFound) {
		t.Error("service principal should not create a user")
	}
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	if _, err := e.Sync(ctx, src); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}

	result, err := e.Sync(ctx, src)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if result.UsersCreated != 0 || result.ConnectionsCreated != 0 {
		t.Errorf("second pass created %d users, %d connections; want 0, 0",
			result.UsersCreated, result.ConnectionsCreated)
	}
}

func TestSyncEnumerationFailureAborts(t *testing.T) {
	st := createTestStore(t)
	cl := newFakeClient()
	cl.listErr = errors.New("directory unavailable")
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	// Stage a change that must not be pushed after the aborted step.
	sealed, err := secrets.Seal(testKey(t), []byte("newpw"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	change := &models.PasswordChange{SourceID: src.ID, Identifier: "alice@EXAMPLE.COM", Sealed: sealed}
	if err := st.StagePasswordChange(context.Background(), change); err != nil {
		t.Fatalf("StagePasswordChange() error = %v", err)
	}

	if _, err := e.Sync(context.Background(), src); err == nil {
		t.Fatal("Sync() should fail when enumeration fails")
	}
	if _, ok := cl.password("alice@EXAMPLE.COM"); ok {
		t.Error("push-back ran despite the aborted enumeration step")
	}
}

func TestSyncDrainsPasswordChanges(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	sealed, err := secrets.Seal(testKey(t), []byte("s3cr3t!"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	change := &models.PasswordChange{SourceID: src.ID, Identifier: "alice@EXAMPLE.COM", Sealed: sealed}
	if err := st.StagePasswordChange(ctx, change); err != nil {
		t.Fatalf("StagePasswordChange() error = %v", err)
	}

	result, err := e.Sync(ctx, src)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.PasswordsPushed != 1 {
		t.Errorf("PasswordsPushed = %d, want 1", result.PasswordsPushed)
	}

	if pw, ok := cl.password("alice@EXAMPLE.COM"); !ok || pw != "s3cr3t!" {
		t.Errorf("pushed password = %q, %v; want s3cr3t!, true", pw, ok)
	}

	remaining, err := st.ListPasswordChanges(ctx, src.ID)
	if err != nil {
		t.Fatalf("ListPasswordChanges() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("staged changes after push = %d, want 0", len(remaining))
	}
}

func TestSyncKeepsChangeOnPushFailure(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	cl.setErr = errors.New("kpasswd refused")
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	sealed, _ := secrets.Seal(testKey(t), []byte("s3cr3t!"))
	change := &models.PasswordChange{SourceID: src.ID, Identifier: "alice@EXAMPLE.COM", Sealed: sealed}
	if err := st.StagePasswordChange(ctx, change); err != nil {
		t.Fatalf("StagePasswordChange() error = %v", err)
	}

	result, err := e.Sync(ctx, src)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.PushFailures != 1 {
		t.Errorf("PushFailures = %d, want 1", result.PushFailures)
	}

	remaining, _ := st.ListPasswordChanges(ctx, src.ID)
	if len(remaining) != 1 {
		t.Errorf("staged changes after failed push = %d, want 1", len(remaining))
	}
}

func TestSyncDropsUndecryptableChange(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	// Sealed under a different key than the engine's.
	otherKey, _ := secrets.ParseKey(strings.Repeat("ff", secrets.KeySize))
	sealed, _ := secrets.Seal(otherKey, []byte("lost"))
	change := &models.PasswordChange{SourceID: src.ID, Identifier: "alice@EXAMPLE.COM", Sealed: sealed}
	if err := st.StagePasswordChange(ctx, change); err != nil {
		t.Fatalf("StagePasswordChange() error = %v", err)
	}

	if _, err := e.Sync(ctx, src); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if _, ok := cl.password("alice@EXAMPLE.COM"); ok {
		t.Error("undecryptable change must not be pushed")
	}
	remaining, _ := st.ListPasswordChanges(ctx, src.ID)
	if len(remaining) != 0 {
		t.Errorf("undecryptable change should be dropped, %d remain", len(remaining))
	}
}

func TestSyncSkipsPushBackWhenDisabled(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)

	src := testSource(t, st, "EXAMPLE.COM")
	src.SyncUsersPassword = false
	if err := st.UpdateSource(ctx, src); err != nil {
		t.Fatalf("UpdateSource() error = %v", err)
	}

	sealed, err := secrets.Seal(testKey(t), []byte("s3cr3t"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	change := &models.PasswordChange{SourceID: src.ID, Identifier: "alice@EXAMPLE.COM", Sealed: sealed}
	if err := st.StagePasswordChange(ctx, change); err != nil {
		t.Fatalf("StagePasswordChange() error = %v", err)
	}

	result, err := e.Sync(ctx, src)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.PasswordsPushed != 0 {
		t.Errorf("PasswordsPushed = %d, want 0", result.PasswordsPushed)
	}
	if _, ok := cl.password("alice@EXAMPLE.COM"); ok {
		t.Error("password pushed upstream although sync_users_password is off")
	}
}

func TestChangePasswordSkipsSourceWithPushBackDisabled(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	if _, err := e.Sync(ctx, src); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	src.SyncUsersPassword = false
	if err := st.UpdateSource(ctx, src); err != nil {
		t.Fatalf("UpdateSource() error = %v", err)
	}

	if err := e.ChangePassword(ctx, "alice", "n3w-pa55"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	alice, err := st.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !alice.CheckPassword("n3w-pa55") {
		t.Error("local password hash not updated")
	}

	if _, ok := cl.password("alice@EXAMPLE.COM"); ok {
		t.Error("password pushed upstream although sync_users_password is off")
	}
	remaining, _ := st.ListPasswordChanges(ctx, src.ID)
	if len(remaining) != 0 {
		t.Errorf("staged changes = %d, want 0", len(remaining))
	}
}

func TestChangePasswordSupersedesStagedChange(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	if _, err := e.Sync(ctx, src); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// First change stays staged because the realm is unreachable.
	cl.setErr = errors.New("kdc unreachable")
	if err := e.ChangePassword(ctx, "alice", "first-pw"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	// Second change, realm back up: the immediate push must clear the
	// superseded row too, not just the freshly generated one.
	cl.setErr = nil
	if err := e.ChangePassword(ctx, "alice", "second-pw"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if pw, ok := cl.password("alice@EXAMPLE.COM"); !ok || pw != "second-pw" {
		t.Errorf("pushed password = %q, %v; want second-pw, true", pw, ok)
	}
	remaining, err := st.ListPasswordChanges(ctx, src.ID)
	if err != nil {
		t.Fatalf("ListPasswordChanges() error = %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("staged changes after successful push = %d, want 0", len(remaining))
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	if _, err := e.Sync(ctx, src); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if err := e.ChangePassword(ctx, "alice", "n3w-pa55"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	alice, err := st.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !alice.CheckPassword("n3w-pa55") {
		t.Error("local password hash not updated")
	}

	if pw, ok := cl.password("alice@EXAMPLE.COM"); !ok || pw != "n3w-pa55" {
		t.Errorf("immediate push = %q, %v; want n3w-pa55, true", pw, ok)
	}

	// Immediate push succeeded, so nothing stays staged.
	remaining, _ := st.ListPasswordChanges(ctx, src.ID)
	if len(remaining) != 0 {
		t.Errorf("staged changes after immediate push = %d, want 0", len(remaining))
	}
}

func TestChangePasswordStagesWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	cl := newFakeClient(kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"})
	e := newTestEngine(t, st, cl)
	src := testSource(t, st, "EXAMPLE.COM")

	if _, err := e.Sync(ctx, src); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	// Subsequent pushes fail; the change must stay staged.
	cl.setErr = errors.New("kdc unreachable")

	if err := e.ChangePassword(ctx, "alice", "n3w-pa55"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	remaining, err := st.ListPasswordChanges(ctx, src.ID)
	if err != nil {
		t.Fatalf("ListPasswordChanges() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("staged changes = %d, want 1", len(remaining))
	}

	plaintext, err := secrets.Open(testKey(t), remaining[0].Sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(plaintext) != "n3w-pa55" {
		t.Errorf("staged plaintext = %q, want n3w-pa55", plaintext)
	}
}

func TestGuessEmail(t *testing.T) {
	tests := []struct {
		principal kadmin.Principal
		want      string
	}{
		{kadmin.Principal{Name: "alice", Realm: "EXAMPLE.COM"}, "alice@example.com"},
		{kadmin.Principal{Name: "Bob", Realm: "SUB.EXAMPLE.COM"}, "Bob@sub.example.com"},
		{kadmin.Principal{Name: "norealm"}, ""},
	}
	for _, tt := range tests {
		if got := guessEmail(tt.principal); got != tt.want {
			t.Errorf("guessEmail(%v) = %q, want %q", tt.principal, got, tt.want)
		}
	}
}
