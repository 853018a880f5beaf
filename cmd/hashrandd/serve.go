package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arkaitz-dev/hashrand-go/config"
	"github.com/arkaitz-dev/hashrand-go/internal/health"
	"github.com/arkaitz-dev/hashrand-go/internal/httpapi"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/logger"
	"github.com/arkaitz-dev/hashrand-go/internal/metrics"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage/memory"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage/postgres"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load configuration and start the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (env vars override)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var opts []config.LoaderOptions
	if configPath != "" {
		opts = append(opts, config.LoaderOptions{Paths: []string{configPath}})
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}

	log := logger.NewDefaultLogger()
	if cfg.Logging != nil {
		log.SetPrettyPrint(cfg.Logging.PrettyPrint)
	}

	keys, err := keymaterial.Load(cfg.Keys)
	if err != nil {
		log.Fatal("load key material", logger.Error(err))
	}

	store, err := openStore(cmd.Context(), cfg.Storage)
	if err != nil {
		log.Fatal("open storage", logger.Error(err))
	}
	defer store.Close()

	checker := health.NewHealthChecker(cfg.Health.CheckTimeout)
	checker.SetLogger(log)
	checker.SetCacheTTL(cfg.Health.CacheTTL)
	checker.RegisterCheck("storage", health.DatabaseHealthCheck(store.Ping))

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.ListenAddr); err != nil {
				log.Error("metrics server stopped", logger.Error(err))
			}
		}()
	}

	server := httpapi.New(cfg, keys, store, log)

	mux := http.NewServeMux()
	mux.Handle("/", server.Routes())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := checker.GetOverallStatus(r.Context())
		if status != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte(status))
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}

	stop := make(chan struct{})
	go server.RunSweeper(time.Minute, stop)

	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server stopped", logger.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewStore(ctx, cfg.DSN)
	default:
		return memory.NewStore(), nil
	}
}
