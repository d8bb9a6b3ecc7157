package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/sweetbre/internal/core/api"
	"github.com/solatis/sweetbre/internal/core/auth"
	"github.com/solatis/sweetbre/internal/core/config"
	"github.com/solatis/sweetbre/internal/core/db"
	"github.com/solatis/sweetbre/internal/core/metrics"
	"github.com/solatis/sweetbre/internal/core/server"
	"github.com/solatis/sweetbre/internal/project"
	"github.com/solatis/sweetbre/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC evaluation service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus endpoint address (empty disables it)")
	serveCmd.Flags().String("project", "", "project document (YAML)")
	serveCmd.Flags().Bool("watch", false, "reload the project when the file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"server.host":         "host",
		"server.port":         "port",
		"server.metrics_addr": "metrics-addr",
		"engine.project":      "project",
		"engine.watch":        "watch",
	})
	if err != nil {
		return err
	}
	if cfg.Engine.Project == "" {
		return fmt.Errorf("--project required")
	}
	logger := slog.Default()
	collector := metrics.NewCollector(nil)
	engine := rules.NewEngine(nil, rules.WithStopOnError(cfg.Engine.StopOnError))

	var holder *project.Holder
	if cfg.Engine.Watch {
		holder, err = project.NewHolder(cfg.Engine.Project,
			project.WithLogger(logger),
			project.OnReload(func(p *rules.Project) {
				engine.SetProject(p)
				collector.RecordReload(nil)
			}),
			project.OnReloadError(collector.RecordReload),
		)
		if err != nil {
			return err
		}
		engine.SetProject(holder.Project())
	} else {
		p, err := project.Load(cfg.Engine.Project)
		if err != nil {
			return err
		}
		engine.SetProject(p)
	}

	var store *db.RunStore
	if cfg.Storage.DBURL != "" {
		if store, err = db.OpenStore(cfg.Storage.DBURL, db.RequireMigrated); err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		defer store.Close()
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	authenticator := auth.NewAuthenticator(secrets, logger)
	if !authenticator.Enabled() {
		logger.Warn("No HMAC secrets configured, API key authentication disabled (set SB_HMAC_SECRET)")
	}

	service, err := api.NewService(engine, api.Options{
		DefaultRuleset: cfg.Engine.DefaultRuleset,
		RequestTimeout: cfg.Server.RequestTimeout,
		Store:          store,
		Metrics:        collector,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, authenticator, collector, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if holder != nil {
		go func() {
			if err := holder.Watch(ctx); err != nil {
				logger.Error("Project watcher exited", "error", err)
			}
		}()
	}

	logger.Info("Starting sweetbre evaluation service",
		"version", Version,
		"addr", cfg.Server.Addr(),
		"project", cfg.Engine.Project,
		"watch", cfg.Engine.Watch,
		"storage", store != nil,
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
