package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockcount-backend/internal/cache"
	"stockcount-backend/internal/config"
	"stockcount-backend/internal/database"
	"stockcount-backend/internal/metrics"
	"stockcount-backend/internal/notify"
	"stockcount-backend/internal/server"
	"stockcount-backend/internal/stockcount"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const tokenCacheTTL = 24 * time.Hour

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stockcount",
		Short: "Stock count backend",
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the database schema and exit",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			// Init migrates as part of connecting.
			database.Init(cfg)
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	var accessLog bool
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(accessLog)
		},
	}
	cmd.Flags().BoolVar(&accessLog, "access-log", true, "log every request")
	return cmd
}

func serve(accessLog bool) error {
	cfg := config.Load()
	database.Init(cfg)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("[WARN] unknown TIMEZONE %q, using UTC", cfg.Timezone)
		loc = time.UTC
	}

	deps := server.Deps{
		Registry:  prometheus.NewRegistry(),
		AccessLog: accessLog,
		Notifier:  notify.LogNotifier{},
	}
	if cfg.SMSGatewayURL != "" {
		deps.Notifier = notify.NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayToken)
	}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Printf("[WARN] token cache disabled: %v", err)
		} else {
			defer rc.Close()
			deps.Cache = stockcount.TokenCache(cache.NewTokenCache(rc, tokenCacheTTL))
		}
	}

	app := server.New(cfg, database.DB, deps)

	scheduler := metrics.StartRefresher(database.DB, cfg.MetricsRefreshInterval, loc)
	defer scheduler.Stop()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("[WARN] shutdown: %v", err)
		}
	}()

	log.Printf("listening on :%s", cfg.HTTPPort)
	return app.Listen(":" + cfg.HTTPPort)
}
