// Package cli implements the phylaxctl commands.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/phylaxctl/internal/app"
	"github.com/semmidev/phylaxctl/internal/config"
)

type VersionInfo struct {
	Version string
	Commit  string
}

// session builds the application on first use so --help and version work
// without a config.
type session struct {
	configPath string
	app        *app.App
}

func (s *session) App(ctx context.Context) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize app: %w", err)
	}
	s.app = a
	return a, nil
}

func (s *session) close() {
	if s.app != nil {
		s.app.Shutdown()
		s.app = nil
	}
}

type runFunc func(cmd *cobra.Command, a *app.App, args []string) error

// run builds the app for one command invocation and shuts it down after.
func (s *session) run(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := s.App(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cmd, a, args)
	}
}

func NewRootCommand(info VersionInfo) *cobra.Command {
	s := &session{}

	cmd := &cobra.Command{
		Use:           "phylaxctl",
		Short:         "Phylax backup console",
		Long:          "Manage database connections, their backup settings and backups on a Phylax backup server.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&s.configPath, "config", "", "config file (default is ./phylax.yaml)")
	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	cmd.AddCommand(newConnectionsCommand(s))
	cmd.AddCommand(newSettingsCommand(s))
	cmd.AddCommand(newBackupsCommand(s))

	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(info VersionInfo) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return NewRootCommand(info).ExecuteContext(ctx)
}
