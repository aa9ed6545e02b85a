package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"newsletter/internal/config"
	"newsletter/internal/db"
	"newsletter/internal/email"
	"newsletter/internal/logging"
	"newsletter/internal/server"
	"newsletter/internal/store"
	"newsletter/internal/telemetry"
)

type options struct {
	configPath string
	migrate    bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fset := pflag.NewFlagSet("newsletter", pflag.ContinueOnError)
	fset.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	fset.BoolVar(&opts.migrate, "migrate", true, "apply pending database migrations before serving")
	if err := fset.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.LoadWithEnv(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(settings.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, opts, log); err != nil {
		log.Error("service stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, settings config.Settings, opts options, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(settings.Tracing, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "err", err)
		}
	}()

	dsn := settings.Database.ConnectionString()
	pool, err := db.OpenPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	if opts.migrate {
		log.Info("running migrations")
		if err := db.RunMigrations(dsn); err != nil {
			return fmt.Errorf("failed to migrate the database: %w", err)
		}
		log.Info("migrations complete")
	}

	ln, err := net.Listen("tcp", settings.Address())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", settings.Address(), err)
	}

	st := store.NewPostgres(pool)
	cfg := server.Config{
		Store:  st,
		Pinger: st,
		Logger: log,
	}
	if n := email.New(settings.Email); n != nil {
		cfg.Notifier = n
		log.Info("welcome mail enabled", "smtp_host", settings.Email.SMTPHost)
	}

	srv, err := server.New(ln, cfg)
	if err != nil {
		ln.Close()
		return err
	}

	log.Info("starting", "addr", srv.Addr().String())
	return srv.Run(ctx)
}
