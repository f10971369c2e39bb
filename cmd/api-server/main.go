package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/internal/catalog"
	"gamevault/internal/events"
	"gamevault/internal/library"
	synchub "gamevault/internal/sync"
	"gamevault/pkg/database"
	"gamevault/pkg/logging"
	"gamevault/pkg/utils"
)

func main() {
	configDir := flag.String("config", "", "directory holding gamevault.yaml")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api-server stopped", zap.Error(err))
	}
}

func run(cfg *utils.Config, logger *zap.Logger) error {
	dbCfg := database.DefaultConfig(cfg.Server.DBPath)
	db, err := database.OpenAndMigrate(dbCfg, database.SchemaServer)
	if err != nil {
		return err
	}
	defer db.Close()

	var pub events.Publisher = events.NoopPublisher{}
	if cfg.Server.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.Server.NATSURL)
		if err != nil {
			return err
		}
		pub = np
		logger.Info("publishing library events", zap.String("nats", cfg.Server.NATSURL))
	}
	defer pub.Close()

	hub := synchub.NewHub(logger)
	tcpSrv := synchub.NewServer(cfg.Server.TCPAddr, hub, logger)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Log.Dev {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", synchub.WSHandler(hub))
	registerProbes(router, db, dbCfg, hub)

	tokens := auth.NewTokenService(cfg.Auth)
	authRepo := auth.NewRepo(db)
	auth.NewHandler(authRepo, tokens, logger).RegisterRoutes(router.Group("/auth"))

	protected := router.Group("/users")
	protected.Use(auth.AuthMiddleware(tokens, authRepo))
	protected.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
		})
	})

	notifier := library.NewNotifier(hub, pub, logger)
	library.NewHandler(library.NewRepo(db), notifier, logger).RegisterRoutes(protected)

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.ClientID, cfg.Catalog.Token,
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithLogger(logger),
	)
	catalog.NewHandler(catalogClient).RegisterRoutes(router.Group("/catalog"))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("tcp sync: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP API listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("servers stopped")
	return runErr
}

func registerProbes(router *gin.Engine, db *sql.DB, dbCfg database.Config, hub *synchub.Hub) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})
}
