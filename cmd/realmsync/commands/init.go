package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/realmsync/realmsync/internal/cli/prompt"
	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/models"
	"github.com/realmsync/realmsync/pkg/secrets"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a realmsync configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/realmsync/config.yaml.
Use --config to specify a custom path.

A fresh secrets key is generated for sealing staged password changes,
and you are prompted for the initial admin password.

Examples:
  # Initialize with default location
  realmsync init

  # Initialize with custom path
  realmsync init --config /etc/realmsync/config.yaml

  # Force overwrite existing config
  realmsync init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()

	key, err := secrets.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate secrets key: %w", err)
	}
	cfg.Secrets.Key = key

	password, err := prompt.PasswordWithConfirmation("Admin password", "Confirm admin password", 8)
	if err != nil {
		if prompt.IsAborted(err) {
			return fmt.Errorf("aborted")
		}
		return err
	}
	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	cfg.Admin.PasswordHash = hash

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Register a source:      realmsync source add EXAMPLE.COM --principal sync/admin@EXAMPLE.COM")
	fmt.Println("  2. Check connectivity:     realmsync check EXAMPLE.COM")
	fmt.Println("  3. Run the sync service:   realmsync serve")
	fmt.Println("\nSecurity note:")
	fmt.Println("  The generated secrets key seals staged password changes at rest.")
	fmt.Println("  Keep the configuration file private (it is written with mode 0600).")

	return nil
}
