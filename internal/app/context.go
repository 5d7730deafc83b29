// Package app wires the workspace pieces together: database, migrations,
// configuration and seed catalogs.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"gestionobras/internal/config"
	"gestionobras/internal/db"
	"gestionobras/internal/engine"
	"gestionobras/internal/migrate"
)

// Context is an initialized workspace ready to serve requests.
type Context struct {
	DB     *sql.DB
	Engine engine.Engine
	Config *config.Config
}

// Open loads the workspace config, opens and migrates the database and seeds
// the configured catalogs. The caller owns the returned DB handle.
func Open(ctx context.Context, workspace string) (*Context, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if err := eng.SeedCatalogos(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed catalogs: %w", err)
	}
	return &Context{DB: conn, Engine: eng, Config: cfg}, nil
}

func (c *Context) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
