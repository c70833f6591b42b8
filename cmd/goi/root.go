package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	goi "github.com/Jamplesmise/prompt-tool-sub006"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/config"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "goi",
	Short: "goi runs goal sessions for prompt engineering tools",
	Long: `goi is a goal-oriented interaction engine. It decomposes a natural
language goal into a todo list, executes it step by step, and pauses at
checkpoints where a human must approve before work continues.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

// buildApp assembles the engine from the command's flags.
func buildApp(cmd *cobra.Command) (*goi.App, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.ParseLevel(level))
	return goi.New(
		goi.WithConfig(cfg),
		goi.WithLogger(logger),
	)
}
