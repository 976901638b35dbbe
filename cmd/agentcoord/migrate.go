package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/BaSui01/agentcoord/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// migrateOptions 覆盖配置文件中的数据库连接
type migrateOptions struct {
	dbType string
	dbURL  string
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	mopts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the coordination SQL schema",
	}
	cmd.PersistentFlags().StringVar(&mopts.dbType, "db-type", "", "Database type: postgres, mysql, sqlite (default: from config)")
	cmd.PersistentFlags().StringVar(&mopts.dbURL, "db-url", "", "Database connection URL (default: from config)")

	sub := func(use, short string, args cobra.PositionalArgs, run func(context.Context, *migration.CLI, []string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, opts, mopts, func(ctx context.Context, cli *migration.CLI) error {
					return run(ctx, cli, args)
				})
			},
		}
	}

	cmd.AddCommand(
		sub("up", "Apply all pending migrations", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunUp(ctx) }),
		sub("down", "Roll back the last migration", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunDown(ctx) }),
		sub("steps N", "Apply (N > 0) or roll back (N < 0) N migrations", cobra.ExactArgs(1),
			func(ctx context.Context, cli *migration.CLI, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return cli.RunSteps(ctx, n)
			}),
		sub("force VERSION", "Force the schema version without running migrations", cobra.ExactArgs(1),
			func(ctx context.Context, cli *migration.CLI, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return cli.RunForce(ctx, v)
			}),
		sub("status", "Show every migration and whether it is applied", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunStatus(ctx) }),
		sub("version", "Show the current schema version", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunVersion(ctx) }),
		sub("info", "Show a migration summary", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunInfo(ctx) }),
	)
	return cmd
}

// withMigrator 优先使用 --db-type/--db-url，否则读取配置中的 database 段
func withMigrator(cmd *cobra.Command, opts *rootOptions, mopts *migrateOptions, fn func(context.Context, *migration.CLI) error) error {
	ctx := cmd.Context()

	var (
		m   *migration.DefaultMigrator
		err error
	)
	if mopts.dbURL != "" {
		dbType := mopts.dbType
		if dbType == "" {
			return fmt.Errorf("--db-type is required with --db-url")
		}
		m, err = migration.NewMigratorFromURL(ctx, dbType, mopts.dbURL)
	} else {
		cfg, loadErr := loadConfig(opts)
		if loadErr != nil {
			return loadErr
		}
		dbCfg := cfg.Database
		if mopts.dbType != "" {
			dbCfg.Driver = mopts.dbType
		}
		m, err = migration.NewMigratorFromDatabaseConfig(ctx, dbCfg)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	cli := migration.NewCLI(m)
	cli.SetOutput(cmd.OutOrStdout())
	return fn(ctx, cli)
}
