package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/priyxstudio/coreutils/config"
	"github.com/priyxstudio/coreutils/loggers/cli"
)

var (
	configPath = config.DefaultLocation
	debug      = false
)

var root = &cobra.Command{
	Use:   "coreutils",
	Short: "A multi-call binary providing core file and user utilities.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		initLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultLocation, "set the location for the configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "pass in order to run in debug mode")

	root.AddCommand(newDuCommand())
	root.AddCommand(newCpCommand())
	root.AddCommand(newChmodCommand())
	root.AddCommand(newReadlinkCommand())
	root.AddCommand(newRmdirCommand())
	root.AddCommand(newWhoamiCommand())
	root.AddCommand(newLognameCommand())
	root.AddCommand(newHostidCommand())
}

func Execute() {
	if err := root.Execute(); err != nil {
		log.WithField("error", err).Fatal("failed to execute command")
	}
}

// Reads the configuration from the disk and then sets up the global singleton
// with all the configuration values.
func initConfig() {
	if err := config.FromFile(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cmd/root: error while reading configuration file: %v\n", err)
		os.Exit(1)
	}
	if debug && !config.Get().Debug {
		config.SetDebugViaFlag(debug)
	}
}

// Configures the global logger for the application pointing it to the
// configured handler and debug level.
func initLogging() {
	log.SetHandler(cli.Default)
	if config.Get().Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
