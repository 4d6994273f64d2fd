package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/blogpush/internal"
	"github.com/starford/blogpush/internal/notify"
	pkgconfig "github.com/starford/blogpush/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// appAction loads the config, builds the app and hands it to fn. Notices are
// printed to stdout unless quiet is set.
func appAction(quiet bool, fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
		}
		if !quiet {
			opts = append(opts, internal.WithNotifier(notify.NewWriter(os.Stdout)))
		}

		app, err := internal.NewApp(ctx, opts...)
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer app.Close()

		return fn(ctx, cmd, app)
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "blogpush",
		Usage: "Publish Markdown notes from a local vault to a GitHub-hosted blog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: commands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
