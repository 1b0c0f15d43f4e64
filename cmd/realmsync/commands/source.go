package commands

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/realmsync/realmsync/internal/cli/output"
	"github.com/realmsync/realmsync/internal/cli/prompt"
	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/models"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage Kerberos sources",
}

var (
	sourceAddName         string
	sourceAddPrincipal    string
	sourceAddPassword     bool
	sourceAddKeytabFile   string
	sourceAddCCache       string
	sourceAddKrb5ConfFile string
	sourceAddGuessEmail   bool
	sourceAddDirectoryURL string
	sourceAddBindDN       string
	sourceAddBaseDN       string
	sourceAddDisabled     bool
)

var sourceAddCmd = &cobra.Command{
	Use:   "add <realm>",
	Short: "Register a Kerberos source",
	Long: `Register a Kerberos realm as an identity source.

The sync principal authenticates the admin session. Provide exactly one
credential: --password (prompts interactively), --keytab (a keytab
file, stored base64-encoded), or --ccache (a TYPE:residual reference).

Examples:
  # Password credential, prompted
  realmsync source add EXAMPLE.COM --principal sync/admin@EXAMPLE.COM --password

  # Keytab credential with a custom krb5.conf
  realmsync source add EXAMPLE.COM --principal sync/admin@EXAMPLE.COM \
    --keytab /etc/realmsync/sync.keytab --krb5-conf /etc/krb5.conf.example

  # FreeIPA directory for principal enumeration
  realmsync source add EXAMPLE.COM --principal sync/admin@EXAMPLE.COM --password \
    --directory-url ldaps://ipa.example.com --base-dn dc=example,dc=com`,
	Args: cobra.ExactArgs(1),
	RunE: runSourceAdd,
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	Args:  cobra.NoArgs,
	RunE:  runSourceList,
}

var sourceRemoveCmd = &cobra.Command{
	Use:     "remove <source>",
	Aliases: []string{"delete"},
	Short:   "Remove a source and its user connections",
	Args:    cobra.ExactArgs(1),
	RunE:    runSourceRemove,
}

func init() {
	sourceAddCmd.Flags().StringVar(&sourceAddName, "name", "", "Display name (defaults to the realm)")
	sourceAddCmd.Flags().StringVar(&sourceAddPrincipal, "principal", "", "Sync principal, e.g. sync/admin@EXAMPLE.COM")
	sourceAddCmd.Flags().BoolVar(&sourceAddPassword, "password", false, "Prompt for the sync principal's password")
	sourceAddCmd.Flags().StringVar(&sourceAddKeytabFile, "keytab", "", "Path to a keytab for the sync principal")
	sourceAddCmd.Flags().StringVar(&sourceAddCCache, "ccache", "", "Credentials cache reference, e.g. FILE:/tmp/krb5cc_0")
	sourceAddCmd.Flags().StringVar(&sourceAddKrb5ConfFile, "krb5-conf", "", "Path to a krb5.conf for this realm")
	sourceAddCmd.Flags().BoolVar(&sourceAddGuessEmail, "guess-email", true, "Derive user emails from principal and realm")
	sourceAddCmd.Flags().StringVar(&sourceAddDirectoryURL, "directory-url", "", "LDAP directory URL for principal enumeration")
	sourceAddCmd.Flags().StringVar(&sourceAddBindDN, "bind-dn", "", "LDAP bind DN (prompts for the bind password)")
	sourceAddCmd.Flags().StringVar(&sourceAddBaseDN, "base-dn", "", "LDAP search base DN")
	sourceAddCmd.Flags().BoolVar(&sourceAddDisabled, "disabled", false, "Register the source without enabling sync")

	sourceCmd.AddCommand(sourceAddCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceRemoveCmd)
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	realm := args[0]
	src := &models.Source{
		Name:                 sourceAddName,
		Realm:                realm,
		Enabled:              !sourceAddDisabled,
		SyncUsers:            true,
		SyncUsersPassword:    true,
		SyncGuessEmail:       sourceAddGuessEmail,
		PasswordLoginEnabled: true,
		SyncPrincipal:        sourceAddPrincipal,
		SyncCCache:           sourceAddCCache,
		DirectoryURL:         sourceAddDirectoryURL,
		DirectoryBindDN:      sourceAddBindDN,
		DirectoryBaseDN:      sourceAddBaseDN,
	}
	if src.Name == "" {
		src.Name = realm
	}

	if sourceAddPassword {
		password, err := prompt.Password("Sync principal password")
		if err != nil {
			return err
		}
		src.SyncPassword = password
	}

	if sourceAddKeytabFile != "" {
		raw, err := os.ReadFile(sourceAddKeytabFile)
		if err != nil {
			return fmt.Errorf("failed to read keytab: %w", err)
		}
		src.SyncKeytab = base64.StdEncoding.EncodeToString(raw)
	}

	if sourceAddKrb5ConfFile != "" {
		raw, err := os.ReadFile(sourceAddKrb5ConfFile)
		if err != nil {
			return fmt.Errorf("failed to read krb5.conf: %w", err)
		}
		src.Krb5Conf = string(raw)
	}

	if sourceAddBindDN != "" {
		bindPassword, err := prompt.Password("Directory bind password")
		if err != nil {
			return err
		}
		src.DirectoryBindPassword = bindPassword
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.CreateSource(cmd.Context(), src); err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	fmt.Printf("Source %s registered (slug: %s)\n", src.Realm, src.Slug)
	fmt.Printf("Check connectivity with: realmsync check %s\n", src.Slug)
	return nil
}

func runSourceList(cmd *cobra.Command, args []string) error {
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

	sources, err := st.ListSources(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	table := output.NewTableData("SLUG", "REALM", "ENABLED", "SYNC", "PRINCIPAL")
	for _, src := range sources {
		table.AddRow(
			src.Slug,
			src.Realm,
			fmt.Sprintf("%t", src.Enabled),
			fmt.Sprintf("%t", src.SyncEnabled()),
			src.SyncPrincipal,
		)
	}
	return printList(sources, table)
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	src, err := resolveSource(ctx, st, args[0])
	if err != nil {
		return err
	}

	confirmed, err := prompt.Confirm(
		fmt.Sprintf("Remove source %s and all of its user connections?", src.Slug))
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := st.DeleteSource(ctx, src.Slug); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	fmt.Printf("Source %s removed\n", src.Slug)
	return nil
}
