package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"agent-navigator/internal/logger"
	"agent-navigator/navgraph"
)

func NewBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a navigation graph and save it",
		Long:  "Build the configured grid, with obstacles applied, and save it as a JSON or YAML snapshot that serve can load.",
		RunE:  build,
		Args:  cobra.NoArgs,
	}

	flags := cmd.Flags()
	addCommonFlags(flags)
	flags.String("out", "navgraph.json", "the snapshot file to write (.json, .yaml or .yml)")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindCommonFlags(flags)
		MustBindPFlag("build.out", flags.Lookup("out"))
	}

	return cmd
}

func build(cmd *cobra.Command, _ []string) error {
	config, err := ReadConfig()
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(config.Log.Format, config.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	out := viper.GetString("build.out")
	g, err := buildGraph(config, log)
	if err != nil {
		return err
	}
	if err := navgraph.Save(g, out); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}

	log.Info("graph saved", zap.String("file", out), zap.Int("nodes", g.Len()))
	return nil
}
