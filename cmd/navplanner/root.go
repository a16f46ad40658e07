package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with NAVPLANNER, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("NAVPLANNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/navplanner", "$HOME/.navplanner", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// a missing config file is fine; flags and env still apply
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:          "navplanner",
		Short:        "A navigation-graph route planner for large numbers of agents",
		SilenceUsage: true,
		Long: `A navigation-graph route planner for large numbers of agents.

Routes are answered by a pool of A* workers sharing one read-only graph, either
synchronously over HTTP or in batches whose results are polled or streamed.`,
	}
}

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}
