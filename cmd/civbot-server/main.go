package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opencivic/civbot/internal/citydata"
	"github.com/opencivic/civbot/internal/classifier"
	"github.com/opencivic/civbot/internal/config"
	"github.com/opencivic/civbot/internal/delivery"
	"github.com/opencivic/civbot/internal/orchestrator"
	"github.com/opencivic/civbot/internal/orchestrator/flows"
	"github.com/opencivic/civbot/internal/orchestrator/sessions"
	"github.com/opencivic/civbot/internal/orchestrator/turnlog"
)

// AppState holds all application services
type AppState struct {
	Logger       *zap.Logger
	Orchestrator *orchestrator.Orchestrator
	TurnLog      *turnlog.Service
	Data         citydata.Client
	Sender       delivery.Sender
	DB           *bun.DB
}

func main() {
	// Load configuration
	config.Load()

	// Initialize logger with config
	logger := initLogger()

	as, err := newAppState(logger)
	if err != nil {
		logger.Fatal("Failed to initialize application state", zap.Error(err))
	}

	router := setupRouter(as)

	addr := fmt.Sprintf("%s:%d", config.Http().Host, config.Http().Port)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Background sweeper for expired sessions; lazy expiry on read remains
	// the source of truth, the sweeper just reclaims memory.
	stopSweeper := startSweeper(as, logger)

	done := setupSignalHandler(as, server, stopSweeper, logger)

	logger.Info("Starting civbot server", zap.String("address", addr))

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	logger.Info("Server shutdown complete")
}

// newAppState creates and initializes the application state
func newAppState(logger *zap.Logger) (*AppState, error) {
	storeCfg := config.Store()
	ttl := time.Duration(storeCfg.SessionTTLMinutes) * time.Minute

	as := &AppState{Logger: logger}

	var sessionStore sessions.Store
	var turnStore turnlog.TurnStore

	switch storeCfg.Backend {
	case "postgres":
		pgCfg := storeCfg.Postgres
		logger.Info("Database configuration",
			zap.String("host", pgCfg.Host),
			zap.Int("port", pgCfg.Port),
			zap.String("database", pgCfg.Database))

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pgCfg.DSN())))
		sqldb.SetMaxOpenConns(pgCfg.MaxOpenConnections)
		db := bun.NewDB(sqldb, pgdialect.New())
		as.DB = db

		pgStore := sessions.NewPostgresStore(db, ttl)
		pgTurns := turnlog.NewPostgresStore(db)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare session schema: %w", err)
		}
		if err := pgTurns.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare turn log schema: %w", err)
		}

		sessionStore = pgStore
		turnStore = pgTurns

	case "memory", "":
		sessionStore = sessions.NewInMemoryStore(ttl)
		turnStore = turnlog.NewInMemoryStore()

	default:
		return nil, fmt.Errorf("unknown store backend: %s", storeCfg.Backend)
	}

	as.TurnLog = turnlog.NewService(turnStore, logger)

	clsCfg := config.Classifier()
	clsTimeout := time.Duration(clsCfg.TimeoutSeconds) * time.Second

	var cls classifier.Classifier
	switch clsCfg.Provider {
	case "openai":
		if clsCfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai classifier requires an API key")
		}
		cls = classifier.NewOpenAIClassifier(clsCfg.OpenAI.APIKey, clsCfg.OpenAI.Model, logger)
	case "http", "":
		cls = classifier.NewHTTPClassifier(clsCfg.BaseURL, clsTimeout, logger)
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", clsCfg.Provider)
	}

	cityCfg := config.CityData()
	as.Data = citydata.NewHTTPClient(cityCfg.BaseURL, time.Duration(cityCfg.TimeoutSeconds)*time.Second, logger)

	deliveryCfg := config.Delivery()
	if deliveryCfg.WebhookURL != "" {
		as.Sender = delivery.NewHTTPSender(deliveryCfg.WebhookURL, time.Duration(deliveryCfg.TimeoutSeconds)*time.Second, logger)
	}

	as.Orchestrator = orchestrator.New(sessionStore, cls, as.Data, flows.DefaultRegistry(), func(o *orchestrator.Options) {
		o.Thresholds = orchestrator.Thresholds{
			LowConfidence:      clsCfg.LowConfidenceThreshold,
			OverrideConfidence: clsCfg.OverrideConfidenceThreshold,
		}
		o.HistoryWindow = storeCfg.HistoryWindow
		o.CollaboratorTimeout = clsTimeout
		o.TurnLog = as.TurnLog
		o.Logger = logger
	})

	return as, nil
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	var config zap.Config
	if logConfig.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	// Set log level
	switch logConfig.Level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

// inboundMessage is the channel webhook payload for one user turn.
type inboundMessage struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

func setupRouter(as *AppState) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(cors.Default())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// CHANNEL API - the delivery channel posts each inbound user message here
	// and relays the reply from the response body.
	webhook := router.Group("/webhook/v1")
	{
		webhook.POST("/messages", handleMessage(as))
	}

	// ADMIN API - operator endpoints behind the admin API key.
	admin := router.Group("/admin/v1")
	admin.Use(adminAuthMiddleware(as))
	{
		admin.GET("/users/:userId/turns", getUserTurns(as))
		admin.GET("/users/:userId/analytics", getUserAnalytics(as))
		admin.DELETE("/users/:userId/session", resetUserSession(as))
		admin.GET("/requests", searchRequests(as))
		admin.POST("/sweep", sweepSessions(as))
	}

	return router
}

// adminAuthMiddleware guards operator endpoints with the configured API key.
func adminAuthMiddleware(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" || apiKey != config.Auth().AdminAPIKey {
			as.Logger.Warn("admin request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing admin API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func handleMessage(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg inboundMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and text are required"})
			return
		}

		reply, err := as.Orchestrator.HandleTurn(c.Request.Context(), msg.UserID, msg.Text)
		if err != nil {
			// Session storage failures abort the turn so the channel retries
			// instead of the dialogue silently restarting.
			if sessions.IsStoreError(err) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable, retry shortly"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// The channel relays the reply synchronously; a configured sender
		// additionally pushes it, for channels that deliver out of band.
		if as.Sender != nil {
			if err := as.Sender.Send(c.Request.Context(), msg.UserID, *reply); err != nil {
				as.Logger.Warn("outbound delivery failed",
					zap.String("user_id", msg.UserID),
					zap.Error(err))
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id": msg.UserID,
			"reply":   reply,
		})
	}
}

func getUserTurns(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		limit := 50
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}

		turns, err := as.TurnLog.RecentTurns(c.Request.Context(), userID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "turns": turns})
	}
}

func getUserAnalytics(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		analytics, err := as.TurnLog.UserAnalytics(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, analytics)
	}
}

func resetUserSession(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")

		if err := as.Orchestrator.ResetSession(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "session": "deleted"})
	}
}

func searchRequests(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := citydata.Filter{
			Location:    c.Query("location"),
			RequestType: c.Query("type"),
		}
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			filter.Limit = parsed
		}

		records, err := as.Data.SearchByLocationOrType(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requests": records})
	}
}

func sweepSessions(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		evicted, err := as.Orchestrator.Sweep(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"evicted": evicted})
	}
}

// startSweeper runs periodic expired-session eviction until the returned
// channel is closed.
func startSweeper(as *AppState, logger *zap.Logger) chan struct{} {
	stop := make(chan struct{})
	interval := time.Duration(config.Store().SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		return stop
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if _, err := as.Orchestrator.Sweep(ctx, time.Now()); err != nil {
					logger.Error("session sweep failed", zap.Error(err))
				}
				cancel()
			case <-stop:
				return
			}
		}
	}()

	return stop
}

func setupSignalHandler(as *AppState, server *http.Server, stopSweeper chan struct{}, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		close(stopSweeper)

		// Create context with timeout for graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		if as.DB != nil {
			if err := as.DB.Close(); err != nil {
				logger.Error("Error closing database", zap.Error(err))
			}
		}

		done <- struct{}{}
	}()

	return done
}
