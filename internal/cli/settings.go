package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/semmidev/phylaxctl/internal/app"
	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/usecase"
)

const previewRuns = 3

func newSettingsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage backup settings",
		Long:  "Show and update the backup settings of a connection. Every card is saved on its own.",
	}

	cmd.AddCommand(newSettingsShowCommand(s))
	cmd.AddCommand(newSettingsStorageCommand(s))
	cmd.AddCommand(newSettingsRetentionCommand(s))
	cmd.AddCommand(newSettingsScheduleCommand(s))
	cmd.AddCommand(newSettingsBackupTypeCommand(s))
	cmd.AddCommand(newSettingsLimitsCommand(s))

	return cmd
}

func newSettingsShowCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <connection-id>",
		Short: "Show backup settings",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			r, err := a.Settings(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			settings, _ := r.Settings()
			return writeSettings(cmd.OutOrStdout(), settings, upcomingRuns(a, settings))
		}),
	}

	return cmd
}

func upcomingRuns(a *app.App, s domain.BackupSettings) []time.Time {
	if !s.SchedulingEnabled || s.CronExpression == nil {
		return nil
	}
	runs, err := a.SchedulePreview().NextRuns(*s.CronExpression, time.Now(), previewRuns)
	if err != nil {
		a.Logger().Debugf("No schedule preview for %q: %v", *s.CronExpression, err)
		return nil
	}
	return runs
}

// saveCard enters edit mode for card, saves it and prints the outcome.
func saveCard(cmd *cobra.Command, a *app.App, connectionID string, card usecase.Card,
	save func(r *usecase.SettingsReconciler, current domain.BackupSettings) error,
) error {
	r, err := a.Settings(cmd.Context(), connectionID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	r.Status().OnChange(func(msg *usecase.StatusMessage) { printStatus(out, msg) })

	if err := r.Edit(card); err != nil {
		if errors.Is(err, domain.ErrCardLocked) {
			return fmt.Errorf("%s settings cannot be changed with the current storage configuration", card)
		}
		return err
	}

	current, _ := r.Settings()
	if err := save(r, current); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) && len(verr.Violations) > 1 {
			printViolations(out, verr.Violations[1:])
		}
		return err
	}
	if _, shown := r.Status().Current(); !shown {
		fmt.Fprintln(out, "No changes to update")
	}
	return nil
}

func newSettingsStorageCommand(s *session) *cobra.Command {
	var (
		target      string
		bucket      string
		region      string
		uploadRole  string
		restoreRole string
		deleteRole  string
		localPath   string
	)

	cmd := &cobra.Command{
		Use:   "storage <connection-id>",
		Short: "Update the primary storage target",
		Long: "Switch between S3 and LOCAL storage or change the S3 bucket, region and IAM roles. " +
			"Switching targets clears the settings of the other target.",
		Args: cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			return saveCard(cmd, a, args[0], usecase.CardStorage,
				func(r *usecase.SettingsReconciler, current domain.BackupSettings) error {
					d := domain.StorageDraftFrom(current)
					changed := cmd.Flags().Changed
					if changed("target") {
						d.Target = domain.StorageTarget(strings.ToUpper(target))
					}
					if changed("bucket") {
						d.S3Bucket = bucket
					}
					if changed("region") {
						d.S3Region = region
					}
					if changed("upload-role") {
						d.UploadRoleARN = uploadRole
					}
					if changed("restore-role") {
						d.RestoreRoleARN = restoreRole
					}
					if changed("delete-role") {
						d.DeleteRoleARN = deleteRole
					}
					if changed("local-path") {
						d.LocalPath = localPath
					}
					return r.SaveStorage(cmd.Context(), d)
				})
		}),
	}

	cmd.Flags().StringVar(&target, "target", "", "Storage target (S3, LOCAL)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket")
	cmd.Flags().StringVar(&region, "region", "", "S3 region")
	cmd.Flags().StringVar(&uploadRole, "upload-role", "", "IAM role ARN used for uploads")
	cmd.Flags().StringVar(&restoreRole, "restore-role", "", "IAM role ARN used for restores")
	cmd.Flags().StringVar(&deleteRole, "delete-role", "", "IAM role ARN used for retention deletes")
	cmd.Flags().StringVar(&localPath, "local-path", "", "Local storage path")

	return cmd
}

func newSettingsRetentionCommand(s *session) *cobra.Command {
	var (
		enable  bool
		disable bool
		mode    string
		value   int
	)

	cmd := &cobra.Command{
		Use:   "retention <connection-id>",
		Short: "Update the retention policy",
		Long:  "Keep the last N backups (COUNT) or the backups of the last N days (DAYS). Needs S3 storage with a delete role.",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			if enable && disable {
				return errors.New("--enable and --disable are mutually exclusive")
			}
			return saveCard(cmd, a, args[0], usecase.CardRetention,
				func(r *usecase.SettingsReconciler, current domain.BackupSettings) error {
					d := domain.RetentionDraftFrom(current)
					if enable {
						d.Enabled = true
					}
					if disable {
						d.Enabled = false
					}
					if cmd.Flags().Changed("mode") {
						d.Mode = domain.RetentionMode(strings.ToUpper(mode))
					}
					if cmd.Flags().Changed("value") {
						d.Value = strconv.Itoa(value)
					}
					return r.SaveRetention(cmd.Context(), d)
				})
		}),
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the retention policy")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the retention policy")
	cmd.Flags().StringVar(&mode, "mode", "", "Retention mode (COUNT, DAYS)")
	cmd.Flags().IntVar(&value, "value", 0, "Number of backups or days to keep")

	return cmd
}

func newSettingsScheduleCommand(s *session) *cobra.Command {
	var (
		enable  bool
		disable bool
		cron    string
	)

	cmd := &cobra.Command{
		Use:   "schedule <connection-id>",
		Short: "Update automatic backup scheduling",
		Long:  "Enable, disable or change the 5-field cron expression of scheduled backups.",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			if enable && disable {
				return errors.New("--enable and --disable are mutually exclusive")
			}
			err := saveCard(cmd, a, args[0], usecase.CardScheduling,
				func(r *usecase.SettingsReconciler, current domain.BackupSettings) error {
					d := domain.ScheduleDraftFrom(current)
					if enable {
						d.Enabled = true
					}
					if disable {
						d.Enabled = false
					}
					if cmd.Flags().Changed("cron") {
						d.Cron = cron
					}
					if d.Enabled && d.Cron != "" {
						if err := a.SchedulePreview().Check(d.Cron); err != nil {
							return err
						}
					}
					return r.SaveSchedule(cmd.Context(), d)
				})
			if err != nil || !cmd.Flags().Changed("cron") {
				return err
			}
			runs, _ := a.SchedulePreview().NextRuns(cron, time.Now(), previewRuns)
			for _, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "  next run: %s\n", run.Format("Mon 2006-01-02 15:04 MST"))
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Enable scheduled backups")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable scheduled backups")
	cmd.Flags().StringVar(&cron, "cron", "", "Cron expression, e.g. \"0 3 * * *\"")

	return cmd
}

func newSettingsBackupTypeCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup-type <connection-id> <FULL|STRUCTURE_ONLY|DATA_ONLY>",
		Short: "Update the default backup type",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			t := domain.BackupType(strings.ToUpper(args[1]))
			return saveCard(cmd, a, args[0], usecase.CardBackupType,
				func(r *usecase.SettingsReconciler, _ domain.BackupSettings) error {
					return r.SaveBackupType(cmd.Context(), t)
				})
		}),
	}

	return cmd
}

func newSettingsLimitsCommand(s *session) *cobra.Command {
	var timeout int

	cmd := &cobra.Command{
		Use:   "limits <connection-id>",
		Short: "Update the backup timeout",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			return saveCard(cmd, a, args[0], usecase.CardLimits,
				func(r *usecase.SettingsReconciler, current domain.BackupSettings) error {
					d := domain.LimitsDraftFrom(current)
					if cmd.Flags().Changed("timeout") {
						d.TimeoutMinutes = strconv.Itoa(timeout)
					}
					return r.SaveLimits(cmd.Context(), d)
				})
		}),
	}

	cmd.Flags().IntVar(&timeout, "timeout", domain.DefaultTimeoutMinutes, "Backup timeout in minutes (1-1440)")

	return cmd
}
