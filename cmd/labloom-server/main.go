package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/at-ishikawa/labloom/internal/config"
	"github.com/at-ishikawa/labloom/internal/database"
	"github.com/at-ishikawa/labloom/internal/logger"
	"github.com/at-ishikawa/labloom/internal/metrics"
	"github.com/at-ishikawa/labloom/internal/note"
	"github.com/at-ishikawa/labloom/internal/server"
	"github.com/at-ishikawa/labloom/schemas"
)

// functionsPrefix keeps the paths of the serverless deployment.
const functionsPrefix = "/.netlify/functions"

var (
	configFile string
	debugMode  bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "labloom-server",
		Short:         "Serve the notes API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
	rootCommand.PersistentFlags().StringVar(&configFile, "config", os.Getenv("LABLOOM_CONFIG"), "config file path")
	rootCommand.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode")
	rootCommand.AddCommand(newMigrateCommand())
	return rootCommand
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("database.Open() > %w", err)
			}
			defer db.Close()

			applied, err := database.Migrate(cmd.Context(), db, schemas.Migrations)
			if err != nil {
				return fmt.Errorf("database.Migrate() > %w", err)
			}
			logrus.WithField("applied", len(applied)).Info("database is up to date")
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("godotenv.Load() > %w", err)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.Load() > %w", err)
	}
	if err := logger.Setup(logger.Options{
		Level:   cfg.Log.Level,
		Debug:   debugMode,
		Format:  logger.FormatJSON,
		Service: "labloom-server",
	}); err != nil {
		return nil, fmt.Errorf("logger.Setup() > %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	handler, err := newHandler(cfg, repo, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{"addr": srv.Addr, "store": cfg.Notes.Store}).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("srv.ListenAndServe() > %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logrus.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("srv.Shutdown() > %w", err)
	}
	return nil
}

// openRepository returns the configured note repository and a func that
// releases it.
func openRepository(ctx context.Context, cfg *config.Config) (note.Repository, func(), error) {
	switch cfg.Notes.Store {
	case "mysql":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("database.Open() > %w", err)
		}
		if err := migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return note.NewDBRepository(db), func() { _ = db.Close() }, nil
	case "file", "":
		return note.NewFileRepository(cfg.Notes.File), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown notes store %q", cfg.Notes.Store)
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db.PingContext() > %w", err)
	}
	if _, err := database.Migrate(ctx, db, schemas.Migrations); err != nil {
		return fmt.Errorf("database.Migrate() > %w", err)
	}
	return nil
}

// newHandler mounts the notes endpoints at the root and under the
// serverless functions prefix, next to /metrics and /healthz.
func newHandler(cfg *config.Config, repo note.Repository, reg *prometheus.Registry) (http.Handler, error) {
	m := metrics.New("api", reg)
	notes, err := server.NewNotesHandler(repo, m)
	if err != nil {
		return nil, fmt.Errorf("server.NewNotesHandler() > %w", err)
	}

	mux := http.NewServeMux()
	notes.Register(mux, "")
	notes.Register(mux, functionsPrefix)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return server.CORS(server.AccessLog(h2c.NewHandler(mux, &http2.Server{})), cfg.Server.CORS.AllowedOrigins), nil
}
