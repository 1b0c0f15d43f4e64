package commands

import (
	"github.com/spf13/cobra"

	"github.com/realmsync/realmsync/pkg/config"
	"github.com/realmsync/realmsync/pkg/sources/kerberos"
)

var checkCmd = &cobra.Command{
	Use:   "check <source>",
	Short: "Check connectivity to a source",
	Long: `Check the admin connection to a Kerberos source.

The source may be given by slug or by realm. The result reports the
connection state and, when reachable, whether the sync principal exists
in the realm.

Examples:
  realmsync check EXAMPLE.COM
  realmsync check example-com`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}
	engine := kerberos.NewEngine(st, engCfg, nil)
	defer engine.Close()

	status := engine.CheckConnection(ctx, src)
	return printResult(status)
}
