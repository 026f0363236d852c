package app

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"caseline/internal/agent"
	"caseline/internal/audit"
	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/migrate"
	"caseline/internal/store"
	"caseline/internal/workflow"
)

// Runtime wires the storage, agents and workflow core for one workspace.
// Both the CLI and the server boot through here so they always agree on
// schema and configuration.
type Runtime struct {
	DB           *sql.DB
	Config       *config.Config
	Store        store.SQLite
	APIKeys      store.APIKeys
	Audit        *audit.Writer
	Agents       agent.Registry
	Orchestrator *workflow.Orchestrator
	Logger       *log.Logger
}

// Open opens (and migrates) the workspace database and builds the
// orchestrator. Missing config falls back to the defaults.
func Open(workspace string) (*Runtime, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	agents, err := agent.FromConfig(cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	logger := log.New(os.Stderr, "caseline ", log.LstdFlags)
	st := store.NewSQLite(conn)
	writer := &audit.Writer{DB: conn}
	o := workflow.New(st, agents, cfg)
	o.Audit = writer
	o.Logger = logger
	return &Runtime{
		DB:           conn,
		Config:       cfg,
		Store:        st,
		APIKeys:      store.APIKeys{DB: conn},
		Audit:        writer,
		Agents:       agents,
		Orchestrator: o,
		Logger:       logger,
	}, nil
}

func (r *Runtime) Close() error {
	return r.DB.Close()
}
