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

	"github.com/zodic/zodic/internal/metrics"
	"github.com/zodic/zodic/internal/web"
	"github.com/zodic/zodic/pkg/backend"
	"github.com/zodic/zodic/pkg/config"
	"github.com/zodic/zodic/pkg/logger"
	"github.com/zodic/zodic/pkg/shutdown"
)

func main() {
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("ZODIC_CONFIG"), "YAML/JSON config file (optional)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		backendURL = flag.String("backend", "", "backend API base URL (overrides config)")
		publicURL  = flag.String("public-url", "", "externally visible base URL of this site (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *listenAddr != "" {
		cfg.Web.Listen = *listenAddr
	}
	if *backendURL != "" {
		cfg.Web.BackendURL = *backendURL
	}
	if *publicURL != "" {
		cfg.Web.PublicURL = *publicURL
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := logger.Init(cfg.Log.LoggerConfig(false)); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Close()

	client := backend.NewClient(backend.Options{
		BaseURL:   cfg.Web.BackendURL,
		Timeout:   cfg.Web.RequestTimeout,
		Retries:   cfg.Web.BackendRetries,
		UserAgent: "zodic-web",
	})

	// the site still starts with the backend down; pages degrade per section
	hctx, hcancel := context.WithTimeout(context.Background(), cfg.Web.RequestTimeout)
	if err := client.Health(hctx); err != nil {
		logger.Warnf("backend %s not healthy at startup: %v", cfg.Web.BackendURL, err)
	} else {
		logger.Infof("backend %s healthy", cfg.Web.BackendURL)
	}
	hcancel()

	srv, err := web.New(web.Config{
		Backend:            client,
		PublicURL:          cfg.Web.PublicURL,
		AuthURL:            cfg.Web.AuthURL,
		CookieName:         cfg.Web.CookieName,
		CookieSecure:       cfg.Web.CookieSecure,
		MarketCacheTTL:     cfg.Web.MarketCacheTTL,
		LiveMarketInterval: cfg.Web.LiveMarketInterval,
		RequestTimeout:     cfg.Web.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("init web server failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	if cfg.MetricsListen != "" {
		ms, err := metrics.StartAsync(ctx, cfg.MetricsListen)
		if err != nil {
			log.Fatalf("start metrics server failed: %v", err)
		}
		logger.Infof("metrics listening on %s", ms.Addr)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("web listening on %s (backend %s)", cfg.Web.Listen, cfg.Web.BackendURL)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	mgr := shutdown.NewManager()
	mgr.OnShutdown("http", httpSrv.Shutdown)
	mgr.OnShutdown("live", func(context.Context) error {
		cancel()
		return srv.Close()
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if failed := mgr.Shutdown(shutdownCtx); failed > 0 {
		logger.Warnf("web stopped with %d shutdown errors", failed)
		return
	}
	logger.Info("web stopped")
}
