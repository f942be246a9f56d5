// Package cmd implements the deltalog command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deltalog/deltalog/logging"
)

// RootCommand is the base CLI command that all subcommands are added to.
var RootCommand = &cobra.Command{
	Use:          "deltalog",
	Short:        "Deltalog is an incremental Datalog-to-IR compiler.",
	SilenceUsage: true,
}

var (
	configFile string
	verbose    bool
)

func init() {
	RootCommand.PersistentFlags().StringVar(&configFile, "config-file", "", "set path of configuration file")
	RootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		cobra.CheckErr(viper.ReadInConfig())
	}
	viper.SetEnvPrefix("DELTALOG")
	viper.AutomaticEnv()
}

func newLogger() logging.Logger {
	logger := logging.New()
	if verbose {
		logger.SetLevel(logging.Debug)
	}
	return logger
}
