package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	_ "github.com/nerrad567/area-core/migrations"

	"github.com/nerrad567/area-core/internal/area"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/infrastructure/blobstore"
	"github.com/nerrad567/area-core/internal/infrastructure/config"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
	"github.com/nerrad567/area-core/internal/infrastructure/logging"
	"github.com/nerrad567/area-core/internal/project"
)

const defaultConfigPath = "configs/config.yaml"

// env is the opened database plus the repositories the commands use.
type env struct {
	cfg   *config.Config
	log   *logging.Logger
	db    *database.DB
	users *auth.SQLiteUserRepository
	roles *auth.SQLiteRoleRepository
}

// openEnv loads the configuration named by --config and opens the database.
// With migrate set, pending migrations are applied first.
func openEnv(c *cli.Command, migrate bool) (*env, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if path != defaultConfigPath || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	e := &env{
		cfg:   cfg,
		log:   logging.New(cfg.Logging, version),
		db:    db,
		users: auth.NewUserRepository(db.DB),
		roles: auth.NewRoleRepository(db.DB),
	}
	if migrate {
		if err := db.Migrate(context.Background()); err != nil {
			db.Close() //nolint:errcheck // error path
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return e, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.log.Error("error closing database", "error", err)
	}
}

func out(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func (e *env) migrate(ctx context.Context, c *cli.Command) error {
	_, pending, err := e.db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	if err := e.db.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out(c), "applied %d migration(s)\n", len(pending))
	return nil
}

func (e *env) migrateDown(ctx context.Context, c *cli.Command) error {
	if err := e.db.MigrateDown(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out(c), "rolled back latest migration")
	return nil
}

func (e *env) status(ctx context.Context, c *cli.Command) error {
	applied, pending, err := e.db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	w := out(c)
	for _, m := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

func (e *env) seed(ctx context.Context, c *cli.Command) error {
	role, err := auth.SeedRegisteredUserRole(ctx, e.roles, e.log.Logger)
	if err != nil {
		return err
	}
	password, err := auth.SeedAdmin(ctx, e.users, auth.AdminSeed{
		Username: e.cfg.Security.Admin.Username,
		Email:    e.cfg.Security.Admin.Email,
		Password: e.cfg.Security.Admin.Password,
	}, e.log.Logger)
	if err != nil {
		return err
	}

	w := out(c)
	fmt.Fprintf(w, "role %s ready (id %d)\n", role.Name, role.ID)
	switch {
	case password == "":
		fmt.Fprintf(w, "admin %s already exists\n", e.cfg.Security.Admin.Username)
	case e.cfg.Security.Admin.Password == "":
		fmt.Fprintf(w, "admin %s created with password %s\n", e.cfg.Security.Admin.Username, password)
	default:
		fmt.Fprintf(w, "admin %s created\n", e.cfg.Security.Admin.Username)
	}
	return nil
}

func (e *env) grant(ctx context.Context, c *cli.Command, roleName, resourceName string, actions []string) error {
	resource, err := auth.ParseResourceType(resourceName)
	if err != nil {
		return err
	}
	bits, err := auth.ParseActions(resource, actions)
	if err != nil {
		return err
	}
	role, err := e.roles.GetByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, err)
	}
	mask, err := e.roles.Grant(ctx, role.ID, resource, bits)
	if err != nil {
		return err
	}
	fmt.Fprintf(out(c), "%s on %s: %v (mask %d)\n", role.Name, resource, auth.ActionNames(resource, mask), mask)
	return nil
}

func (e *env) assign(ctx context.Context, c *cli.Command, username, roleName string) error {
	user, err := e.users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	role, err := e.roles.GetByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("role %q: %w", roleName, err)
	}
	if err := e.roles.Assign(ctx, user.ID, role.ID); err != nil {
		return err
	}
	fmt.Fprintf(out(c), "%s is now a member of %s\n", user.Username, role.Name)
	return nil
}

// cleanup empties the domain tables. Rows go first; stored images are then
// removed best effort.
func (e *env) cleanup(ctx context.Context, c *cli.Command) error {
	areas := area.NewSQLiteRepository(e.db.DB)
	all, err := areas.List(ctx, 0)
	if err != nil {
		return err
	}

	counts := make([]int64, 5)
	steps := []func(context.Context) (int64, error){
		areas.DeleteAll,
		device.NewSQLiteRepository(e.db.DB).DeleteAll,
		project.NewSQLiteRepository(e.db.DB).DeleteAll,
		e.users.DeleteNonAdmin,
		func(ctx context.Context) (int64, error) { return e.roles.DeleteAllExcept(ctx, auth.RegisteredUserRole) },
	}
	for i, step := range steps {
		if counts[i], err = step(ctx); err != nil {
			return err
		}
	}

	removed := e.deleteImages(ctx, all)
	fmt.Fprintf(out(c), "removed %d areas, %d devices, %d projects, %d users, %d roles, %d images\n",
		counts[0], counts[1], counts[2], counts[3], counts[4], removed)
	return nil
}

func (e *env) deleteImages(ctx context.Context, areas []area.Area) int {
	store, err := blobstore.New(ctx, e.cfg.Images)
	if err != nil {
		e.log.Warn("image store unavailable, images left in place", "error", err)
		return 0
	}
	removed := 0
	for _, a := range areas {
		if a.ImagePath == "" {
			continue
		}
		if err := store.Delete(ctx, a.ImagePath); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			e.log.Warn("deleting area image", "key", a.ImagePath, "error", err)
			continue
		}
		removed++
	}
	return removed
}
