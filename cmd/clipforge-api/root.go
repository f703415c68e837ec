package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:   "clipforge-api",
	Short: "clipforge job API and pipeline workers",
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}

// initLogging installs the global zap logger and returns a func undoing it.
func initLogging(cfg *config.Config) func() {
	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
	undo := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		undo()
	}
}
