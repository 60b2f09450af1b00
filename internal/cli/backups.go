package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semmidev/phylaxctl/internal/app"
	"github.com/semmidev/phylaxctl/internal/domain"
)

func newBackupsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Manage backups",
		Long:  "List backups of a connection, request manual backups and restores, and download artifacts.",
	}

	cmd.AddCommand(newBackupsListCommand(s))
	cmd.AddCommand(newBackupsCreateCommand(s))
	cmd.AddCommand(newBackupsRestoreCommand(s))
	cmd.AddCommand(newBackupsDownloadCommand(s))
	cmd.AddCommand(newBackupsPruneCommand(s))

	return cmd
}

func newBackupsListCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <connection-id>",
		Short: "List backups of a connection",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			backups, err := a.Backups().List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups yet")
				return nil
			}
			return writeBackups(cmd.OutOrStdout(), backups)
		}),
	}

	return cmd
}

func newBackupsCreateCommand(s *session) *cobra.Command {
	var (
		backupType string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "create <connection-id>",
		Short: "Request a manual backup",
		Long:  "Request a manual backup. The connection's default backup type is used unless --type is given.",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			backup, err := a.Backups().Initiate(cmd.Context(), args[0], domain.BackupType(strings.ToUpper(backupType)), name)
			if err != nil {
				var capErr *domain.CapabilityError
				if errors.As(err, &capErr) {
					return fmt.Errorf("backups are not available for %s: %s", args[0], capErr.Error())
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup %s queued (%s, %s)\n", backup.ID, backup.Type, backup.Status)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&backupType, "type", "t", "", "Backup type (FULL, STRUCTURE_ONLY, DATA_ONLY)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Optional backup label")

	return cmd
}

func newBackupsRestoreCommand(s *session) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "restore <connection-id> <backup-id>",
		Short: "Restore a full backup",
		Long:  "Restore a successful full backup into the connection's database. Needs --yes.",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to restore %s over %s without --yes", args[1], args[0])
			}
			attempt, err := a.Backups().Restore(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore %s %s\n", attempt.ID, strings.ToLower(string(attempt.Status)))
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the restore")

	return cmd
}

func newBackupsDownloadCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <connection-id> <backup-id>",
		Short: "Download a backup artifact",
		Long:  "Download a successful S3 backup into the downloads directory.",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			path, err := a.Backups().Download(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		}),
	}

	return cmd
}

func newBackupsPruneCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old downloads",
		Long:  "Delete downloaded artifacts older than downloads.retention_days.",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			n, err := a.Cleanup().Execute(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d download(s)\n", n)
			return nil
		}),
	}

	return cmd
}
