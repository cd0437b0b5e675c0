// Package commands provides the CLI commands for the autoforge tool.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reschivon/autoforge/internal/config"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "autoforge",
	Short: "autoforge - Dependency-preserving statement shuffler for Python",
	Long: `autoforge rewrites Python functions with their statements reordered.
Statements only move inside their basic block and never past a statement they
depend on, so the rewritten program behaves like the original.

Commands:
  shuffle     Reorder statements and print or write the result
  analyze     Show reaching definitions and dependencies per statement
  cfg         Show the chunk graphs of every function
  init        Write a configuration file interactively

Use "autoforge [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: global and project config)")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")

	RootCmd.AddCommand(shuffleCmd)
	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(cfgCmd)
	RootCmd.AddCommand(initCmd)
}

// loadConfig loads the configuration named by --config, or the layered
// configuration when it is empty, and applies the flags shared by every
// command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if cmd.Flags().Changed("only") {
		only, _ := cmd.Flags().GetString("only")
		cfg.Only = config.SplitList(only)
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// readPythonFile reads a single Python source file.
func readPythonFile(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, expected a file: %s", filePath)
	}
	if !isPythonFile(filePath) {
		return nil, fmt.Errorf("unsupported file type: %s (only .py files supported)", filePath)
	}

	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return src, nil
}

// isPythonFile checks if the file has a .py extension.
func isPythonFile(filePath string) bool {
	return strings.HasSuffix(filePath, ".py")
}
