// Command shipsync dispatches Wildberries fulfillment tasks to CDEK or orderadmin.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/erp/shipsync/internal/domain/fulfillment"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

// Exit codes
const (
	exitOK           = 0
	exitFailure      = 1
	exitConfigError  = 2
	exitAuthFailure  = 3
	exitStorageError = 4
)

type globalFlags struct {
	configFile string
	envFile    string
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shipsync:", err)
		return exitCode(err)
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "shipsync",
		Short:         "Dispatch marketplace fulfillment tasks to a shipping backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "config file (default: config.toml in ., ./config or /etc/shipsync)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file loaded before reading the environment (default: .env if present)")

	root.AddCommand(
		newRunCmd(flags),
		newServeCmd(flags),
		newCheckCmd(flags),
	)
	return root
}

// exitCode maps an error to a process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, fulfillment.ErrConfigInvalid):
		return exitConfigError
	case errors.Is(err, fulfillment.ErrAuthFailed):
		return exitAuthFailure
	case errors.Is(err, fulfillment.ErrPersistence):
		return exitStorageError
	default:
		return exitFailure
	}
}
