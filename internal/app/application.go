package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"skillswap/internal/api"
	"skillswap/internal/auth"
	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/hub"
	"skillswap/internal/meeting"
	"skillswap/internal/notify"
	"skillswap/internal/rooms"
	"skillswap/internal/router"
	"skillswap/internal/scheduler"
	"skillswap/internal/turnserver"
	"skillswap/internal/websocket"
	dbconfig "skillswap/pkg/database"
	"skillswap/pkg/interfaces"
)

// rateLimitCleanupInterval is how often idle rate limiter entries are dropped
const rateLimitCleanupInterval = time.Minute

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config        *config.Config
	logger        *zap.Logger
	dbManager     *database.Manager
	service       *meeting.Service
	registry      *websocket.Registry
	roomRegistry  *rooms.Registry
	messageRouter *router.Router
	messageHub    *hub.Hub
	apiServer     *api.Server
	httpServer    *http.Server
	relayConfig   *turnserver.Config

	listener net.Listener
	turn     *turnserver.Server
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Database → Scheduler/Meetings → Registry → Rooms → Router → Hub → Auth → API → HTTP
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Validate configuration before component initialization
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Initialize database manager (foundation layer)
	dbConfig := cfg.DatabaseConfig()
	dbManager, err := database.NewManager(dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	// STEP 1.5: Apply database migrations, then confirm the store sees the schema it expects
	migrator, err := dbconfig.NewMigrator(dbManager.GetDB(), dbConfig.Driver, logger)
	if err == nil {
		err = migrator.Up(context.Background())
	}
	if err == nil {
		err = dbconfig.NewSchemaValidator(dbManager.GetDB(), dbConfig.Driver).Validate()
	}
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	logger.Info("database migrations applied", zap.String("driver", dbConfig.Driver))

	// STEP 2: Scheduler and meeting service share one notification builder
	builder := notify.NewBuilder()
	sched := scheduler.New(dbManager, builder, cfg.SchedulerConfig(), logger)
	service := meeting.NewService(dbManager, sched, nil, builder, cfg.JoinPolicy(), logger)

	// STEP 3: Connection registry and room state
	registry := websocket.NewRegistry()
	roomRegistry := rooms.NewRegistry(cfg.Rooms.Grace, logger.Named("rooms"))

	// STEP 4: Relay router; participant checks are opt-in
	var authorizer interfaces.RoomAuthorizer
	if cfg.Rooms.EnforceParticipants {
		authorizer = service
	}
	messageRouter := router.NewRouter(registry, roomRegistry, authorizer, cfg.Rooms.RateLimit, logger)

	// STEP 5: Hub serializes relay events
	messageHub := hub.NewHub(messageRouter, logger)

	// STEP 6: Bearer credentials for both REST and socket upgrades
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}
	wsHandler := websocket.NewHandler(registry, verifier, messageHub, logger)

	// STEP 7: ICE configuration handed to clients
	var relayConfig *turnserver.Config
	if cfg.TURN.Enabled {
		relayConfig = &turnserver.Config{
			ListenAddr: cfg.TURN.ListenAddr,
			PublicIP:   cfg.TURN.PublicIP,
			Realm:      cfg.TURN.Realm,
			Username:   cfg.TURN.Username,
			Password:   cfg.TURN.Password,
		}
	}

	// STEP 8: API server owns every route, the socket endpoint included
	apiServer := api.NewServer(api.Deps{
		Service:    service,
		Health:     dbManager,
		Verifier:   verifier,
		ICEServers: turnserver.ICEServers(cfg.TURN.STUNURLs, relayConfig),
		Stats: map[string]api.StatsProvider{
			"connections": registry,
			"relay":       messageRouter,
		},
		WebSocket: wsHandler.HandleWebSocket,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:        cfg,
		logger:        logger.Named("app"),
		dbManager:     dbManager,
		service:       service,
		registry:      registry,
		roomRegistry:  roomRegistry,
		messageRouter: messageRouter,
		messageHub:    messageHub,
		apiServer:     apiServer,
		httpServer:    httpServer,
		relayConfig:   relayConfig,
		stop:          make(chan struct{}),
	}, nil
}

// Start begins application execution
// Hub starts first to handle messages, then the TURN relay, then the HTTP
// listener. Start returns once the listener is bound.
func (app *Application) Start(ctx context.Context) error {
	// STEP 1: Start message hub (background message processing)
	if err := app.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message hub: %w", err)
	}

	// STEP 2: Optional embedded TURN relay
	if app.relayConfig != nil {
		turn, err := turnserver.Start(*app.relayConfig, app.logger)
		if err != nil {
			_ = app.messageHub.Stop()
			return fmt.Errorf("failed to start TURN relay: %w", err)
		}
		app.turn = turn
	}

	// STEP 3: Bind the HTTP listener so startup errors surface here
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		app.stopBackground()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	app.wg.Add(2)
	go func() {
		defer app.wg.Done()
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	go app.cleanupLoop()

	app.logger.Info("skillswap started", zap.String("addr", listener.Addr().String()))
	return nil
}

func (app *Application) cleanupLoop() {
	defer app.wg.Done()
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.messageRouter.CleanupRateLimits()
		case <-app.stop:
			return
		}
	}
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → sockets → Hub → TURN → Rooms → Database
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down skillswap")

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// STEP 2: Hijacked sockets are not covered by Shutdown
	app.registry.CloseAll()

	// STEP 3: Stop background processing
	app.stopBackground()
	app.wg.Wait()

	// STEP 4: Close database connections
	if err := app.dbManager.Close(); err != nil {
		app.logger.Warn("database shutdown error", zap.Error(err))
	}

	app.logger.Info("skillswap shutdown complete")
	return nil
}

func (app *Application) stopBackground() {
	select {
	case <-app.stop:
	default:
		close(app.stop)
	}
	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		app.logger.Warn("message hub shutdown error", zap.Error(err))
	}
	if app.turn != nil {
		if err := app.turn.Close(); err != nil {
			app.logger.Warn("TURN relay shutdown error", zap.Error(err))
		}
		app.turn = nil
	}
	app.roomRegistry.Close()
}

// GetAddr returns the bound listen address, or the configured one before Start
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Handler exposes the HTTP surface for in-process servers
func (app *Application) Handler() http.Handler {
	return app.apiServer
}

// ShutdownTimeout is the configured grace for Stop
func (app *Application) ShutdownTimeout() time.Duration {
	return app.config.HTTP.ShutdownTimeout
}
