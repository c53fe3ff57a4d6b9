// Package cli implements the arbor command-line host: a cobra command tree
// over one persisted service, plus a bubbletea browser.
package cli

import (
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/alexanderramin/arbor/internal/catalog"
	"github.com/alexanderramin/arbor/internal/config"
	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/db"
	"github.com/alexanderramin/arbor/internal/service"
	"github.com/alexanderramin/arbor/internal/tree"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// App holds the host dependencies shared by every command.
type App struct {
	DB       *sql.DB
	Config   config.Config
	Logger   *slog.Logger
	Registry *tree.Registry
	// Metrics receives the service collectors when set.
	Metrics prometheus.Registerer
	Now     func() time.Time
	NewID   func() string
	// RunProgram drives the browser and input forms. Nil runs a real
	// tea.Program.
	RunProgram func(m tea.Model) error
	// IsInteractive reports whether stdin is a terminal.
	IsInteractive func() bool

	agentID  string
	roles    []string
	readOnly bool
	dbPath   string
	ownsDB   bool
	metrics  *service.MetricsObserver
}

// openDB opens the database named by --db when the host did not inject one.
func (a *App) openDB() error {
	if a.DB != nil {
		return nil
	}
	path := a.dbPath
	if path == "" {
		path = a.Config.DBPath
	}
	conn, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	a.DB = conn
	a.ownsDB = true
	return nil
}

// Close releases a database opened by the App.
func (a *App) Close() error {
	if !a.ownsDB || a.DB == nil {
		return nil
	}
	err := a.DB.Close()
	a.DB = nil
	a.ownsDB = false
	return err
}

func (a *App) registry() *tree.Registry {
	if a.Registry == nil {
		a.Registry = catalog.Registry()
	}
	return a.Registry
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// agent builds the caller identity from the persistent flags.
func (a *App) agent() contract.AgentContext {
	roles := make([]contract.Role, 0, len(a.roles))
	for _, r := range a.roles {
		roles = append(roles, contract.Role(r))
	}
	return contract.AgentContext{AgentID: a.agentID, ReadOnly: a.readOnly, Roles: roles}
}

// NewRootCmd creates the top-level "arbor" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "arbor",
		Short:         "Hierarchical outline engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.openDB()
		},
	}

	root.PersistentFlags().StringVar(&app.agentID, "agent", "cli", "Agent ID recorded in the audit log")
	root.PersistentFlags().StringSliceVar(&app.roles, "role", []string{string(contract.RoleEditor)}, "Agent roles (reader|editor|admin)")
	root.PersistentFlags().BoolVar(&app.readOnly, "read-only", false, "Reject mutations")
	root.PersistentFlags().StringVar(&app.dbPath, "db", "", "SQLite database path (default from ARBOR_DB_PATH)")

	root.AddCommand(
		newInitCmd(app),
		newShowCmd(app),
		newNodeCmd(app),
		newSearchCmd(app),
		newTagCmd(app),
		newBookmarkCmd(app),
		newFilterCmd(app),
		newValidateCmd(app),
		newDiffCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newSnapshotCmd(app),
		newAuditCmd(app),
		newBrowseCmd(app),
	)

	return root
}
