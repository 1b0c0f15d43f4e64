package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/realmsync/realmsync/internal/cli/output"
	"github.com/realmsync/realmsync/internal/cli/prompt"
	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
	Long: `Change a user's local password.

When the user is connected to a source with sync enabled, the new
password is also pushed upstream to the realm. If the realm cannot be
reached, the change is staged and retried during the next sync pass.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserPasswd,
}

func init() {
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
}

func runUserList(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	table := output.NewTableData("USERNAME", "EMAIL", "ROLE", "ENABLED", "LAST LOGIN")
	for _, u := range users {
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(time.RFC3339)
		}
		table.AddRow(u.Username, u.Email, u.Role, fmt.Sprintf("%t", u.Enabled), lastLogin)
	}
	return printList(users, table)
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	username := args[0]
	password, err := prompt.PasswordWithConfirmation("New password", "Confirm new password", 8)
	if err != nil {
		if prompt.IsAborted(err) {
			return fmt.Errorf("aborted")
		}
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	engine := kerberos.NewEngine(st, engCfg, nil)
	defer engine.Close()

	if err := engine.ChangePassword(cmd.Context(), username, password); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	fmt.Printf("Password updated for %s\n", username)
	return nil
}
