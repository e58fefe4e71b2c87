package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/klabast/wb-services/calendar42/internal/app"
	"github.com/klabast/wb-services/calendar42/internal/commands"
	"github.com/klabast/wb-services/calendar42/internal/config"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/services/auth"
)

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var indexHTML []byte

//go:embed static/admin.html
var adminHTML []byte

func main() {
	// .env is optional
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "calendar42",
		Usage: "Serve the 42 Calendar event catalog.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultPath, EnvVars: []string{"CALENDAR_CONFIG"}, Usage: "Path to the YAML config file"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			createAdminCommand(),
			migrateCommand(),
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("application failed", sl.Err(err))
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command line overrides
func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	if c.IsSet("port") {
		os.Setenv("CALENDAR_PORT", fmt.Sprint(c.Int("port")))
	}
	if c.IsSet("driver") {
		os.Setenv("CALENDAR_STORAGE_DRIVER", c.String("driver"))
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := sl.SetupLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	return cfg, logger, nil
}

var storageFlags = []cli.Flag{
	&cli.StringFlag{Name: "driver", Usage: "Storage driver: json, sqlite or postgres"},
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server (default).",
		Flags: append([]cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on"},
		}, storageFlags...),
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger.Info("starting application",
				slog.String("env", cfg.Env),
				slog.String("storage", cfg.Storage.Driver),
			)

			application, err := app.New(c.Context, logger, cfg, app.Assets{
				IndexHTML: indexHTML,
				AdminHTML: adminHTML,
				Static:    staticFiles,
			})
			if err != nil {
				return err
			}

			go application.MustRun()

			// graceful shutdown
			stopChan := make(chan os.Signal, 1)
			signal.Notify(stopChan, syscall.SIGTERM, syscall.SIGINT)

			sign := <-stopChan
			logger.Info("stopping application", slog.String("signal", sign.String()))

			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := application.Stop(ctx); err != nil {
				logger.Error("failed to stop application", slog.String("signal", sign.String()), sl.Err(err))
				return err
			}

			logger.Info("application stopped", slog.String("signal", sign.String()))
			return nil
		},
	}
}

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "Create an administrator account or promote an existing one.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Administrator email (prompted when empty)"},
			&cli.BoolFlag{Name: "insecure-unmask-password", Usage: "Show password as plain text (INSECURE!)"},
		}, storageFlags...),
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			st, err := app.OpenStorage(c.Context, logger, cfg.Storage)
			if err != nil {
				return err
			}
			defer st.Close()

			authService := auth.New(logger, st, st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			return commands.CreateAdmin(c.Context, authService, commands.CreateAdminOptions{
				Email:          c.String("email"),
				InsecureUnmask: c.Bool("insecure-unmask-password"),
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the SQL schema for the sqlite and postgres drivers.",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "down", Usage: "Roll every migration back"},
		}, storageFlags...),
		Action: func(c *cli.Context) error {
			cfg, logger, err := loadConfig(c)
			if err != nil {
				return err
			}

			if err := app.Migrate(cfg.Storage, c.Bool("down")); err != nil {
				return err
			}
			logger.Info("migrations applied",
				slog.String("driver", cfg.Storage.Driver),
				slog.Bool("down", c.Bool("down")),
			)
			return nil
		},
	}
}
