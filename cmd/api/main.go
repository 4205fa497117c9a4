package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zodic/zodic/internal/api"
	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/pkg/config"
	"github.com/zodic/zodic/pkg/kvstore"
	"github.com/zodic/zodic/pkg/logger"
	"github.com/zodic/zodic/pkg/shutdown"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("ZODIC_CONFIG"), "YAML/JSON config file (optional)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		dbPath     = flag.String("db", "", "SQLite db file path (overrides config)")
		sessionDir = flag.String("session-dir", "", "badger session directory (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *listenAddr != "" {
		cfg.API.Listen = *listenAddr
	}
	if *dbPath != "" {
		cfg.API.DBPath = *dbPath
	}
	if *sessionDir != "" {
		cfg.API.SessionDir = *sessionDir
	}

	if err := logger.Init(cfg.Log.LoggerConfig(false)); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Close()

	sessionKey, err := kvstore.ParseKey(cfg.API.SessionKey)
	if err != nil {
		log.Fatalf("invalid api.session_key: %v", err)
	}

	srv, err := api.New(api.Config{
		DBPath:         cfg.API.DBPath,
		SessionDir:     cfg.API.SessionDir,
		SessionKey:     sessionKey,
		IdentityURL:    cfg.API.IdentityURL,
		CORSOrigins:    cfg.API.CORSOrigins,
		AdminEmails:    cfg.API.AdminEmails,
		CookieInsecure: cfg.API.CookieInsecure,
		AuthRateLimit:  cfg.API.AuthRateLimit,
	})
	if err != nil {
		log.Fatalf("init api server failed: %v", err)
	}
	if n, err := srv.LiveSessions(); err == nil {
		logger.Infof("session store holds %d live sessions", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsListen != "" {
		ms, err := metrics.StartAsync(ctx, cfg.MetricsListen)
		if err != nil {
			log.Fatalf("start metrics server failed: %v", err)
		}
		logger.Infof("metrics listening on %s", ms.Addr)
	}

	httpSrv := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("api listening on %s", cfg.API.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	mgr := shutdown.NewManager()
	// stores close only after in-flight requests drain
	mgr.OnShutdown("api", func(ctx context.Context) error {
		if err := httpSrv.Shutdown(ctx); err != nil {
			return err
		}
		return srv.Close()
	})
	mgr.OnShutdown("metrics", func(context.Context) error {
		cancel()
		return nil
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if failed := mgr.Shutdown(shutdownCtx); failed > 0 {
		logger.Warnf("api stopped with %d shutdown errors", failed)
		return
	}
	logger.Info("api stopped")
}
