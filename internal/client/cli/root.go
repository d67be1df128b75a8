package cli

import (
	"bufio"

	"github.com/dmitrijs2005/citygate/internal/buildinfo"
	"github.com/dmitrijs2005/citygate/internal/client/client"
	"github.com/dmitrijs2005/citygate/internal/client/config"
	"github.com/spf13/cobra"
)

type App struct {
	cfg *config.Config

	// token overrides the token file when set.
	token string
}

// NewRootCommand builds the command tree. Flag defaults come from cfg.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	a := &App{cfg: cfg}

	root := &cobra.Command{
		Use:           "citygate",
		Short:         "Command-line client for the citygate Auth API",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "gateway base URL (env: CITYGATE_SERVER)")
	pf.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "where login --save stores the token (env: CITYGATE_TOKEN_FILE)")
	pf.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout (env: CITYGATE_TIMEOUT)")
	pf.StringVar(&a.token, "token", "", "bearer token to use instead of the token file")
	// read by config.LoadConfig before cobra runs
	pf.StringP("config", "c", "", "JSON config file")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.profileCmd(),
		a.updateProfileCmd(),
		a.changePasswordCmd(),
		versionCmd(),
	)
	return root
}

func (a *App) newClient(authenticated bool) (*client.Client, error) {
	c, err := client.New(a.cfg.ServerURL, a.cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		return c, nil
	}

	token := a.token
	if token == "" {
		if token, err = loadToken(a.cfg.TokenFile); err != nil {
			return nil, err
		}
	}
	c.SetToken(token)
	return c, nil
}

// prompt reads a value unless it was already given on the command line.
func prompt(cmd *cobra.Command, reader *bufio.Reader, value *string, label string) error {
	if *value != "" {
		return nil
	}
	v, err := GetSimpleText(reader, label, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	*value = v
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
