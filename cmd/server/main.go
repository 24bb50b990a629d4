package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"meshview/internal/collector"
	"meshview/internal/config"
	"meshview/internal/fusion"
	"meshview/internal/handler"
	"meshview/internal/hub"
	"meshview/internal/repository/sqlite"
	"meshview/internal/service"
	"meshview/internal/watcher"
)

func main() {
	// Command line flags override the config file
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	configPath := flag.String("config", "", "Config file path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Meshview server...")

	// Load configuration
	var cfg *config.Config
	var cfgPath string
	var err error
	if *configPath != "" {
		cfg, cfgPath, err = config.LoadFromPath(*configPath)
	} else {
		cfg, cfgPath, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfgPath != "" {
		log.Printf("Config loaded from %s", cfgPath)
	} else {
		log.Println("No config file found, using defaults")
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	log.Println(cfg.Summary())

	// Initialize SQLite repository
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Database opened: %s", cfg.Database.Path)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Initialize event bus
	eventBus := service.NewEventBus()

	// Initialize SSE hub
	sseHub := hub.New()
	go sseHub.Run(rootCtx)

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			sseHub.Broadcast(event)
		}
	}()

	// Initialize the collection pipeline
	client := collector.NewClient(cfg.Controller.URL, cfg.Controller.Token)
	coll := collector.New(client, collector.Config{
		Timeout:       cfg.Collection.Timeout.Duration(),
		MaxConcurrent: cfg.Collection.MaxConcurrent,
		SuccessFloor:  cfg.Collection.SuccessFloor,
		ScanWait:      cfg.Collection.ScanWait.Duration(),
		KeepAlive:     cfg.Collection.KeepAlive.Duration(),
		Debug:         cfg.Debug,
	})
	engine := fusion.New(fusion.DefaultConfig())
	topoSvc := service.NewTopologyService(coll, engine, repo, eventBus)

	// Serve the persisted last-good snapshot until the first refresh lands
	topoSvc.Restore(rootCtx)
	go func() {
		if _, err := topoSvc.Refresh(rootCtx); err != nil {
			log.Printf("Initial refresh failed: %v", err)
		}
	}()

	// Periodic refresh, interval hot-reloadable from the config file
	refreshInterval := &atomic.Int64{}
	refreshInterval.Store(int64(cfg.AutoRefresh.Duration()))
	intervalChanged := make(chan struct{}, 1)
	go autoRefresh(rootCtx, topoSvc, refreshInterval, intervalChanged)

	if cfgPath != "" {
		w := watcher.New(cfgPath, func() {
			fresh, _, err := config.LoadFromPath(cfgPath)
			if err != nil {
				log.Printf("Config reload failed, keeping previous values: %v", err)
				return
			}
			refreshInterval.Store(int64(fresh.AutoRefresh.Duration()))
			select {
			case intervalChanged <- struct{}{}:
			default:
			}
			log.Printf("Config reloaded, auto refresh interval now %s", fresh.AutoRefresh.Duration())
		})
		go func() {
			if err := w.Watch(rootCtx); err != nil && rootCtx.Err() == nil {
				log.Printf("Config watcher stopped: %v", err)
			}
		}()
	}

	// Initialize HTTP handlers
	topoHandler := handler.NewTopologyHandler(topoSvc)

	// Setup routes
	mux := http.NewServeMux()

	// Graph endpoints
	mux.HandleFunc("GET /api/graph", topoHandler.GetGraph)
	mux.HandleFunc("POST /api/refresh", topoHandler.Refresh)
	mux.HandleFunc("POST /api/refresh/wait", topoHandler.RefreshAndWait)
	mux.HandleFunc("GET /api/status", topoHandler.GetStatus)

	// Node endpoints
	mux.HandleFunc("GET /api/nodes", topoHandler.ListNodes)
	mux.HandleFunc("GET /api/nodes/{ieee}", topoHandler.GetNode)

	// Position endpoints
	mux.HandleFunc("GET /api/positions", topoHandler.GetPositions)
	mux.HandleFunc("POST /api/positions", topoHandler.SavePositions)
	mux.HandleFunc("PUT /api/positions/{ieee}", topoHandler.UpdatePosition)
	mux.HandleFunc("DELETE /api/positions", topoHandler.ResetPositions)

	// Export endpoints
	mux.HandleFunc("GET /api/export/{format}", topoHandler.Export)

	// SSE events endpoint
	mux.Handle("GET /events", sseHub)

	// Health check
	mux.HandleFunc("GET /health", topoHandler.Health)

	// Apply middleware
	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.CORS,
		handler.Logger,
	)

	// Create server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      finalHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	rootCancel()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// autoRefresh runs periodic refresh cycles. A zero interval disables the
// timer until the config changes again.
func autoRefresh(ctx context.Context, svc *service.TopologyService, interval *atomic.Int64, changed <-chan struct{}) {
	for {
		d := time.Duration(interval.Load())
		if d <= 0 {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				continue
			}
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-changed:
			timer.Stop()
			continue
		case <-timer.C:
			if _, err := svc.Refresh(ctx); err != nil {
				log.Printf("Scheduled refresh failed: %v", err)
			}
		}
	}
}
