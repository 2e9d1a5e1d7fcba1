package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/turtacn/TechIntel/pkg/client"
)

// NewServeCmd creates the serve command.
func NewServeCmd(deps CommandDependencies) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server with the configured cache, data sources and readiness
events until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if deps.Serve == nil {
				return notConfigured("server")
			}
			if port > 0 {
				cliCtx.Config.Server.Port = port
			}
			return deps.Serve(cmd.Context(), cliCtx.Config, cliCtx.Logger)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

// versionInfo is printed by the version command.
type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Client    string `json:"client"`
	GoVersion string `json:"go_version"`
}

func (v versionInfo) String() string {
	return fmt.Sprintf("techintel %s (commit: %s, built: %s, client %s, %s)",
		v.Version, v.Commit, v.BuildDate, v.Client, v.GoVersion)
}

// NewVersionCmd creates the version command.  It needs no configuration.
func NewVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildDate: BuildDate,
				Client:    client.Version,
				GoVersion: runtime.Version(),
			}
			if asJSON {
				return printJSON(cmd, info)
			}
			return printText(cmd, info)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
