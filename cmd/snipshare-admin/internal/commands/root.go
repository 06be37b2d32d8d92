// Package commands implements the snipshare-admin sub-commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/snipshare/internal/logging"
)

const (
	flagDB  = "db"
	flagDir = "dir"
)

// Defaults seed the persistent flags. main fills them from config.Load.
type Defaults struct {
	DBPath    string
	BackupDir string
	Log       logging.Settings
}

// NewRootCommand returns the root command with the --db and --dir flags
// every sub-command shares.
func NewRootCommand(d Defaults) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snipshare-admin",
		Short: "Operator tooling for a snipshare database",
		Long: `snipshare-admin runs one-shot maintenance tasks against a snipshare
database: creating, listing, restoring and deleting backup archives.

Defaults for --db and --dir come from the same configuration the server
reads (DB_PATH, BACKUP_DIR, CONFIG_PATH, .env).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String(flagDB, d.DBPath, "Path to the SQLite database file")
	rootCmd.PersistentFlags().String(flagDir, d.BackupDir, "Directory holding backup archives")

	logSettings := d.Log
	if logSettings.Level == "" {
		logSettings = logging.DefaultSettings()
	}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Logs go to stderr so command output on stdout stays clean.
		logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), logSettings)
		if err != nil {
			return fmt.Errorf("failed to setup logger: %w", err)
		}
		cmd.SetContext(withLogger(cmd.Context(), logger))
		return nil
	}
	return rootCmd
}

func loggerFrom(cmd *cobra.Command) *slog.Logger {
	if l, ok := cmd.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return logging.Discard()
}

type loggerKey struct{}

func withLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}
