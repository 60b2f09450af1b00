package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/semmidev/phylaxctl/internal/app"
	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/usecase"
)

// secretEnv lets scripts pass the database password without a flag.
const secretEnv = "PHYLAX_DB_PASSWORD"

func newConnectionsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn", "db"},
		Short:   "Manage database connections",
		Long:    "List, add, edit and delete the database connections managed by the backup server.",
	}

	cmd.AddCommand(newConnectionsListCommand(s))
	cmd.AddCommand(newConnectionsAddCommand(s))
	cmd.AddCommand(newConnectionsEditCommand(s))
	cmd.AddCommand(newConnectionsDeleteCommand(s))
	cmd.AddCommand(newConnectionsStatsCommand(s))

	return cmd
}

func newConnectionsListCommand(s *session) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connections",
		Long:  "List all connections, optionally filtered by name or engine.",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			var view usecase.ListView = usecase.AllConnections{}
			if search != "" {
				view = usecase.SearchConnections{Query: search}
			}
			connections, err := a.Catalog().List(cmd.Context(), view)
			if err != nil {
				return err
			}
			if len(connections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No connections found")
				return nil
			}
			return writeConnections(cmd.OutOrStdout(), connections)
		}),
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by name or engine")

	return cmd
}

// connectionFlags are the form fields shared by add and edit.
type connectionFlags struct {
	name        string
	host        string
	port        string
	engine      string
	environment string
	username    string
	password    string
	sslMode     string
	timeout     time.Duration
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Database name")
	cmd.Flags().StringVar(&f.host, "host", "", "Database host")
	cmd.Flags().StringVar(&f.port, "port", "", "Database port")
	cmd.Flags().StringVar(&f.engine, "engine", "", "Engine (postgresql, mysql, mongodb)")
	cmd.Flags().StringVar(&f.environment, "env", "", "Environment tag")
	cmd.Flags().StringVar(&f.username, "username", "", "Database user")
	cmd.Flags().StringVar(&f.password, "password", "", "Database password (or set "+secretEnv+")")
	cmd.Flags().StringVar(&f.sslMode, "ssl-mode", "", "SSL mode (disable, require, verify-ca, verify-full)")
	cmd.Flags().DurationVar(&f.timeout, "wait", 2*time.Minute, "How long to wait for backend verification")
}

// apply copies the flags the user set onto the draft.
func (f *connectionFlags) apply(cmd *cobra.Command, d *domain.ConnectionDraft) {
	changed := cmd.Flags().Changed
	if changed("name") {
		d.Name = f.name
	}
	if changed("host") {
		d.Host = f.host
	}
	if changed("port") {
		d.Port = f.port
	}
	if changed("engine") {
		d.Engine = domain.Engine(strings.ToLower(f.engine))
	}
	if changed("env") {
		d.Environment = f.environment
	}
	if changed("username") {
		d.Username = f.username
	}
	if changed("ssl-mode") {
		d.SSLMode = domain.SSLMode(strings.ToLower(f.sslMode))
	}
	if changed("password") {
		d.Secret = f.password
	} else if secret := os.Getenv(secretEnv); secret != "" {
		d.Secret = secret
	}
}

// touchesReachability reports whether the set flags change how the backend
// reaches the database.
func (f *connectionFlags) touchesReachability(cmd *cobra.Command) bool {
	for _, name := range []string{"host", "port", "engine", "username", "password", "ssl-mode"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return os.Getenv(secretEnv) != ""
}

func newConnectionsAddCommand(s *session) *cobra.Command {
	var flags connectionFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a connection",
		Long: "Verify and add a database connection. Values entered earlier are restored from the " +
			"saved form draft, the password is never saved.",
		Args: cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			flow := a.NewCreateFlow(ctx, func(ctx context.Context) {
				printConnectionList(ctx, out, a)
			})
			defer flow.Close()
			flow.Status().OnChange(func(msg *usecase.StatusMessage) { printStatus(out, msg) })

			if err := flow.Edit(ctx, func(d *domain.ConnectionDraft) { flags.apply(cmd, d) }); err != nil {
				return err
			}
			if err := verify(ctx, out, flow); err != nil {
				return err
			}
			if err := flow.Submit(ctx); err != nil {
				return err
			}
			return waitForFlow(ctx, flow, flags.timeout)
		}),
	}

	flags.register(cmd)

	return cmd
}

func newConnectionsEditCommand(s *session) *cobra.Command {
	var flags connectionFlags

	cmd := &cobra.Command{
		Use:   "edit <connection-id>",
		Short: "Edit a connection",
		Long: "Update a connection. Changes to host, port, engine, user, password or SSL mode are " +
			"verified before saving and re-verified by the backend.",
		Args: cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			flow, err := a.NewEditFlow(ctx, args[0], func(ctx context.Context) {
				printConnectionList(ctx, out, a)
			})
			if err != nil {
				return err
			}
			defer flow.Close()
			flow.Status().OnChange(func(msg *usecase.StatusMessage) { printStatus(out, msg) })

			if err := flow.Edit(ctx, func(d *domain.ConnectionDraft) { flags.apply(cmd, d) }); err != nil {
				return err
			}
			if flags.touchesReachability(cmd) {
				if err := verify(ctx, out, flow); err != nil {
					return err
				}
			}
			if err := flow.Submit(ctx); err != nil {
				var verr *domain.ValidationError
				if errors.As(err, &verr) {
					printViolations(out, verr.Violations)
				}
				return err
			}
			return waitForFlow(ctx, flow, flags.timeout)
		}),
	}

	flags.register(cmd)

	return cmd
}

// verify runs the dry-run check and fails unless it succeeded.
func verify(ctx context.Context, out io.Writer, flow *usecase.ConnectionFlow) error {
	if err := flow.Verify(ctx); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			printViolations(out, verr.Violations)
		}
		return err
	}
	if failed, ok := flow.Snapshot().Phase.(domain.Failed); ok {
		return fmt.Errorf("verification failed: %s", failed.Message)
	}
	return nil
}

// waitForFlow blocks until the flow closes after success, backend
// verification fails or the timeout passes. It returns at once when the
// submit changed nothing.
func waitForFlow(ctx context.Context, flow *usecase.ConnectionFlow, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		snap := flow.Snapshot()
		if snap.Closed {
			return nil
		}
		switch phase := snap.Phase.(type) {
		case domain.BackendFailed:
			return fmt.Errorf("connection %s: %s", phase.ConnectionID, phase.Message)
		case domain.Idle, domain.Verified:
			if !snap.Finishing && !snap.Submitting {
				return nil
			}
		}

		select {
		case <-flow.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("backend verification did not finish within %s", timeout)
		case <-tick.C:
		}
	}
}

func printConnectionList(ctx context.Context, out io.Writer, a *app.App) {
	connections, err := a.Catalog().List(ctx, usecase.AllConnections{})
	if err != nil {
		a.Logger().Warnf("Failed to refresh connections: %v", err)
		return
	}
	fmt.Fprintln(out)
	_ = writeConnections(out, connections)
}

func newConnectionsDeleteCommand(s *session) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <connection-id>",
		Short: "Delete a connection",
		Long:  "Delete a connection from the backup server. Needs --yes.",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			if err := a.Catalog().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection %s deleted\n", args[0])
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm deletion")

	return cmd
}

func newConnectionsStatsCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show fleet statistics",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, a *app.App, args []string) error {
			stats, err := a.Catalog().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return writeStats(cmd.OutOrStdout(), stats)
		}),
	}

	return cmd
}
