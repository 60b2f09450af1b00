package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/usecase"
)

var (
	colorSuccess = ansiterm.Foreground(ansiterm.Green)
	colorError   = ansiterm.Foreground(ansiterm.BrightRed)
	colorInfo    = ansiterm.Foreground(ansiterm.BrightBlue)
	colorMuted   = ansiterm.Foreground(ansiterm.Gray)
)

func newTable(w io.Writer) *ansiterm.TabWriter {
	return ansiterm.NewTabWriter(w, 0, 1, 2, ' ', 0)
}

// printStatus writes a status bar message on its own line.
func printStatus(w io.Writer, msg *usecase.StatusMessage) {
	if msg == nil {
		return
	}
	out := ansiterm.NewWriter(w)
	switch msg.Kind {
	case usecase.StatusSuccess:
		colorSuccess.Fprintf(out, "✓ %s\n", msg.Text)
	case usecase.StatusError:
		colorError.Fprintf(out, "✗ %s\n", msg.Text)
	default:
		colorInfo.Fprintf(out, "• %s\n", msg.Text)
	}
}

func printViolations(w io.Writer, violations []string) {
	out := ansiterm.NewWriter(w)
	for _, v := range violations {
		colorError.Fprintf(out, "  - %s\n", v)
	}
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.Time(*t)
}

func formatGB(gb float64) string {
	return humanize.Bytes(uint64(gb * 1e9))
}

func formatSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func orDash[T ~string](p *T) string {
	if p == nil || *p == "" {
		return "-"
	}
	return string(*p)
}

func intOrDash(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func writeConnections(w io.Writer, connections []domain.Connection) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tENGINE\tENV\tSTATUS\tLAST BACKUP\tBACKUP STATUS\tSTORAGE")
	for _, c := range connections {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t", c.ID, c.Name, c.Engine, c.Environment)
		statusColor(c.Status).Fprintf(tw, "%s", c.Status)
		fmt.Fprintf(tw, "\t%s\t%s\t%s\n",
			formatWhen(c.LastBackupAt), orDash(c.BackupStatus), formatGB(c.StorageUsedGB))
	}
	return tw.Flush()
}

func statusColor(s domain.ConnectionStatus) *ansiterm.Context {
	switch s {
	case domain.StatusActive:
		return colorSuccess
	case domain.StatusError:
		return colorError
	default:
		return colorInfo
	}
}

func writeStats(w io.Writer, s usecase.Stats) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Connections:\t%d\n", s.Total)
	fmt.Fprintf(tw, "Active:\t%d\n", s.Active)
	fmt.Fprintf(tw, "Backed up:\t%d\n", s.BackedUp)
	fmt.Fprintf(tw, "Last backup:\t%s (%s)\n", formatWhen(s.LastBackupAt), orDash(s.LastBackupStatus))
	fmt.Fprintf(tw, "Storage used:\t%s\n", formatGB(s.StorageUsedGB))
	return tw.Flush()
}

func writeSettings(w io.Writer, s domain.BackupSettings, nextRuns []time.Time) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Connection:\t%s (%s)\n", s.ConnectionID, s.Engine)

	fmt.Fprintln(tw, "[Storage]\t")
	fmt.Fprintf(tw, "  Target:\t%s\n", s.StorageTarget)
	if s.StorageTarget == domain.StorageLocal {
		fmt.Fprintf(tw, "  Path:\t%s\n", orDash(s.LocalStoragePath))
	} else {
		fmt.Fprintf(tw, "  Bucket:\t%s\n", orDash(s.S3Bucket))
		fmt.Fprintf(tw, "  Region:\t%s\n", orDash(s.S3Region))
		fmt.Fprintf(tw, "  Upload role:\t%s\n", orDash(s.BackupUploadRoleARN))
		fmt.Fprintf(tw, "  Restore role:\t%s\n", orDash(s.BackupRestoreRoleARN))
		fmt.Fprintf(tw, "  Delete role:\t%s\n", orDash(s.BackupDeleteRoleARN))
	}

	fmt.Fprintln(tw, "[Retention]\t")
	fmt.Fprintf(tw, "  Policy:\t%s\n", enabled(s.RetentionEnabled))
	if s.RetentionEnabled {
		fmt.Fprintf(tw, "  Keep:\t%s %s\n", intOrDash(s.RetentionValue), strings.ToLower(orDash(s.RetentionMode)))
	}
	if !s.RetentionEditable() {
		colorMuted.Fprintf(tw, "  \trequires S3 storage with a delete role\n")
	}

	fmt.Fprintln(tw, "[Scheduling]\t")
	fmt.Fprintf(tw, "  Schedule:\t%s\n", enabled(s.SchedulingEnabled))
	if s.SchedulingEnabled {
		fmt.Fprintf(tw, "  Cron:\t%s\n", orDash(s.CronExpression))
		for i, run := range nextRuns {
			fmt.Fprintf(tw, "  Next run %d:\t%s (%s)\n", i+1, run.Format("Mon 2006-01-02 15:04 MST"), humanize.Time(run))
		}
	}

	fmt.Fprintln(tw, "[Backups]\t")
	fmt.Fprintf(tw, "  Default type:\t%s\n", s.DefaultBackupType)
	timeout := domain.DefaultTimeoutMinutes
	if s.TimeoutMinutes != nil {
		timeout = *s.TimeoutMinutes
	}
	fmt.Fprintf(tw, "  Timeout:\t%d minutes\n", timeout)
	if s.UpdatedAt != nil {
		fmt.Fprintf(tw, "Updated:\t%s\n", humanize.Time(*s.UpdatedAt))
	}
	return tw.Flush()
}

func writeBackups(w io.Writer, backups []domain.Backup) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tSIZE\tLOCATION\tCREATED")
	for _, b := range backups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t", b.ID, orDash(b.Name), b.Type)
		backupColor(b.Status).Fprintf(tw, "%s", b.Status)
		fmt.Fprintf(tw, "\t%s\t%s\t%s\n", formatSize(b.SizeBytes), b.StorageTarget, humanize.Time(b.CreatedAt))
		if b.Status == domain.BackupFailed && b.ErrorText != nil {
			colorMuted.Fprintf(tw, "\t%s\n", *b.ErrorText)
		}
	}
	return tw.Flush()
}

func backupColor(s domain.BackupStatus) *ansiterm.Context {
	switch s {
	case domain.BackupSuccess:
		return colorSuccess
	case domain.BackupFailed:
		return colorError
	default:
		return colorInfo
	}
}
