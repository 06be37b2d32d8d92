// Package main is the entry point for snipshare-admin, the operator CLI.
// It builds the root command with defaults taken from the server's
// configuration, registers the sub-commands and executes them once.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/snipshare/cmd/snipshare-admin/internal/commands"
	"github.com/sakif/snipshare/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	rootCmd := commands.NewRootCommand(commands.Defaults{
		DBPath:    cfg.DBPath,
		BackupDir: cfg.BackupDir,
		Log:       cfg.Log,
	})

	// Initialize all command groups BEFORE executing
	if err := initializeCommands(rootCmd); err != nil {
		return fmt.Errorf("failed to initialize commands: %w", err)
	}

	return rootCmd.Execute()
}

// initializeCommands registers all command groups with the root command.
func initializeCommands(rootCmd *cobra.Command) error {
	if err := commands.InitBackupCommands(rootCmd); err != nil {
		return fmt.Errorf("failed to initialize backup commands: %w", err)
	}
	return nil
}
