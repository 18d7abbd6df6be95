package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ccs-cli/ccs/internal/configstore"
	"github.com/ccs-cli/ccs/internal/logging"
)

var debug bool

func main() {
	loadDotEnv()

	root := newRootCmd()
	root.AddCommand(newAuthCmd())
	root.AddCommand(newCLIProxyCmd())
	root.AddCommand(newEnvCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		exitWithError(err)
	}
}

// loadDotEnv loads an optional .env file, preferring one in the
// current directory over the one under CCS_HOME, matching the
// teacher's layered lookup.
func loadDotEnv() {
	candidates := []string{
		".env",
		filepath.Join(configstore.Root(), ".env"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			godotenv.Load(path)
		}
	}
}

// newRootCmd builds the root command. Its RunE handles the default
// invocation form `ccs <profile> [prompt...]`; cobra only dispatches to
// a registered subcommand when args[0] matches one exactly, and profile
// names are barred from colliding with a subcommand name at creation
// time, so the two dispatch paths never compete for the same token.
func newRootCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:           "ccs <profile> [-- args...]",
		Short:         "Launch the Claude CLI (or a compatible target) through a named profile",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				if err := logging.EnableDebugLogging(); err != nil {
					return err
				}
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runLaunch(args[0], args[1:], target)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging to ~/.ccs/logs")
	cmd.Flags().StringVar(&target, "target", "", "child CLI to launch (claude or droid); defaults to the profile's own target")
	return cmd
}
