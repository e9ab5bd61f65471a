// Command stepwised runs the stepwise HTTP API and its maintenance tasks.
//
//	stepwised serve --listen :8080
//	stepwised migrate
//	stepwised check ./definitions
//
// Configuration is read from stepwise.yaml in . or ./config, or from the
// file named by --config, and STEPWISE_* environment variables override it
// (STEPWISE_STORE_DRIVER, STEPWISE_STORE_POSTGRES_DSN, ...).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "stepwised",
		Short:         "Guided workflow engine daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file (default stepwise.yaml in . or ./config)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: json or text")
	root.PersistentFlags().String("store", "", "store driver: memory, postgres, bun, redis")
	root.PersistentFlags().String("definitions", "", "directory of extra definition files")

	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("store.driver", root.PersistentFlags().Lookup("store"))
	_ = v.BindPFlag("definitions_dir", root.PersistentFlags().Lookup("definitions"))

	root.AddCommand(
		newServeCmd(v),
		newMigrateCmd(v),
		newCheckCmd(v),
	)
	return root
}
