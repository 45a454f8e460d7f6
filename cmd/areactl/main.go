// areactl is the operator tool for an Area Core database: migrations,
// bootstrap data, role grants and the cleanup utility.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "areactl",
		Usage:   "Area Core administration",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "configuration file",
				Sources: cli.EnvVars("AREACORE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			statusCommand(),
			seedCommand(),
			grantCommand(),
			assignCommand(),
			cleanupCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "down", Usage: "roll back the latest migration instead"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c, false)
			if err != nil {
				return err
			}
			defer e.close()
			if c.Bool("down") {
				return e.migrateDown(ctx, c)
			}
			return e.migrate(ctx, c)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show applied and pending migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c, false)
			if err != nil {
				return err
			}
			defer e.close()
			return e.status(ctx, c)
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create the RegisteredUser role and the bootstrap administrator",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			return e.seed(ctx, c)
		},
	}
}

func grantCommand() *cli.Command {
	return &cli.Command{
		Name:  "grant",
		Usage: "Grant actions on a resource type to a role",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Required: true, Usage: "role name"},
			&cli.StringFlag{Name: "resource", Required: true, Usage: "resource type, e.g. Area"},
			&cli.StringSliceFlag{Name: "actions", Required: true, Usage: "action names, e.g. save,find"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			return e.grant(ctx, c, c.String("role"), c.String("resource"), c.StringSlice("actions"))
		},
	}
}

func assignCommand() *cli.Command {
	return &cli.Command{
		Name:  "assign",
		Usage: "Make a user a member of a role",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "username"},
			&cli.StringFlag{Name: "role", Required: true, Usage: "role name"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEnv(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			return e.assign(ctx, c, c.String("user"), c.String("role"))
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Remove all areas, devices, projects, non-admin users and custom roles",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "confirm; nothing is deleted without it"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.Bool("yes") {
				return fmt.Errorf("cleanup deletes data; rerun with --yes")
			}
			e, err := openEnv(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			return e.cleanup(ctx, c)
		},
	}
}
