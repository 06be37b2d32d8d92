package commands

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/snipshare/internal/backup"
	"github.com/sakif/snipshare/internal/repository/sqlite"
)

// BackupCommandHandler runs backup operations against the database and
// archive directory named by the persistent flags.
type BackupCommandHandler struct{}

// NewBackupCommandHandler returns a BackupCommandHandler.
func NewBackupCommandHandler() *BackupCommandHandler {
	return &BackupCommandHandler{}
}

// open builds a Manager over the flagged database and directory. The
// returned func closes the database.
func (h *BackupCommandHandler) open(cmd *cobra.Command) (*backup.Manager, func(), error) {
	dbPath, err := cmd.Flags().GetString(flagDB)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s flag: %w", flagDB, err)
	}
	dir, err := cmd.Flags().GetString(flagDir)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s flag: %w", flagDir, err)
	}
	if dbPath == "" {
		return nil, nil, errors.New("--db must not be empty")
	}
	if dir == "" {
		return nil, nil, errors.New("--dir must not be empty")
	}

	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	mgr, err := backup.NewManager(dir, db, loggerFrom(cmd))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return mgr, func() { db.Close() }, nil
}

// CreateBackupCmd writes a new archive and prints its name.
func (h *BackupCommandHandler) CreateBackupCmd(cmd *cobra.Command, _ []string) error {
	mgr, closeDB, err := h.open(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	info, err := mgr.Create(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%d bytes)\n", info.Name, info.Size)
	return nil
}

// ListBackupsCmd prints the archives, newest first.
func (h *BackupCommandHandler) ListBackupsCmd(cmd *cobra.Command, _ []string) error {
	mgr, closeDB, err := h.open(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	infos, err := mgr.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no backups in %s\n", mgr.Dir())
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Size, info.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// RestoreBackupCmd replaces every table with the archive's contents.
// It refuses to run without --yes.
func (h *BackupCommandHandler) RestoreBackupCmd(cmd *cobra.Command, args []string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("invalid yes flag: %w", err)
	}
	if !yes {
		return fmt.Errorf("restoring %s replaces all data in the database; rerun with --yes to confirm", args[0])
	}

	mgr, closeDB, err := h.open(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	counts, err := mgr.Restore(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "restored %s\n", args[0])
	for _, t := range tables {
		fmt.Fprintf(out, "  %-20s %d rows\n", t, counts[t])
	}
	return nil
}

// DeleteBackupCmd removes an archive.
func (h *BackupCommandHandler) DeleteBackupCmd(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := h.open(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := mgr.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

// InitBackupCommands registers the backup command group.
func InitBackupCommands(rootCmd *cobra.Command) error {
	handler := NewBackupCommandHandler()

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, restore and delete database backups",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Write a new backup archive",
		Args:  cobra.NoArgs,
		RunE:  handler.CreateBackupCmd,
	}
	backupCmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backup archives, newest first",
		Args:  cobra.NoArgs,
		RunE:  handler.ListBackupsCmd,
	}
	backupCmd.AddCommand(listCmd)

	restoreCmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Replace the database contents with a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE:  handler.RestoreBackupCmd,
	}
	restoreCmd.Flags().Bool("yes", false, "Confirm that existing data will be replaced")
	backupCmd.AddCommand(restoreCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE:  handler.DeleteBackupCmd,
	}
	backupCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(backupCmd)
	return nil
}
