package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillswap/internal/auth"
	"skillswap/internal/turnserver"
	"skillswap/pkg/interfaces"
)

// HealthChecker reports storage reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsProvider exposes in-memory counters for the health endpoint
type StatsProvider interface {
	GetStats() map[string]int
}

// Deps are the collaborators of the HTTP surface. Stats and WebSocket are optional.
type Deps struct {
	Service    interfaces.MeetingService
	Health     HealthChecker
	Verifier   *auth.Verifier
	ICEServers []turnserver.ICEServer
	Stats      map[string]StatsProvider
	WebSocket  http.HandlerFunc
	Logger     *zap.Logger
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	service    interfaces.MeetingService
	health     HealthChecker
	verifier   *auth.Verifier
	iceServers []turnserver.ICEServer
	stats      map[string]StatsProvider
	started    time.Time
	engine     *gin.Engine
	logger     *zap.Logger
}

// NewServer builds the gin engine with every route registered
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:    deps.Service,
		health:     deps.Health,
		verifier:   deps.Verifier,
		iceServers: deps.ICEServers,
		stats:      deps.Stats,
		started:    time.Now(),
		engine:     gin.New(),
		logger:     logger.Named("api"),
	}
	s.setupRoutes(deps.WebSocket)
	return s
}

func (s *Server) setupRoutes(ws http.HandlerFunc) {
	r := s.engine
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", s.healthCheck)
	if ws != nil {
		// the socket handler verifies its own credential before upgrading
		r.GET("/ws", gin.WrapF(ws))
	}

	api := r.Group("/api", s.verifier.Middleware())
	{
		api.GET("/rtc/ice-servers", s.getICEServers)

		api.PUT("/users/me", s.upsertMe)
		api.GET("/users/:id", s.getUser)

		api.POST("/requests", s.createRequest)
		api.GET("/requests/incoming", s.listIncoming)
		api.GET("/requests/sent", s.listSent)
		api.GET("/requests/:id", s.getRequest)
		api.PUT("/requests/:id/select-slot", s.selectSlot)
		api.PUT("/requests/:id/reject", s.rejectRequest)

		api.POST("/payment/:requestId/pay", s.pay)

		api.GET("/meetings/user/:userId", s.listMeetings)
		api.GET("/meetings/room-info/:roomName", s.roomInfo)
		api.GET("/meetings/:id", s.getMeeting)
		api.GET("/meetings/:id/room/:index", s.revealRoom)
		api.PUT("/meetings/:id/classes/:index/complete", s.completeClass)

		api.GET("/notifications", s.listNotifications)
		api.PUT("/notifications/:id/read", s.markNotificationRead)
	}
}

// ServeHTTP implements http.Handler for integration with the standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
	Database  string                    `json:"database"`
	Relay     map[string]map[string]int `json:"relay,omitempty"`
	System    map[string]interface{}    `json:"system"`
}

// FUNCTIONAL DISCOVERY: GET /health - database ping plus in-memory relay counters
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, dbStatus := "healthy", "healthy"
	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			status, dbStatus = "unhealthy", "unreachable"
		}
	}

	relay := make(map[string]map[string]int, len(s.stats))
	for name, provider := range s.stats {
		relay[name] = provider.GetStats()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Database:  dbStatus,
		Relay:     relay,
		System: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"uptime":     time.Since(s.started).Round(time.Second).String(),
		},
	})
}

func (s *Server) getICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": s.iceServers})
}

// ErrorResponse is the consistent error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) sendError(c *gin.Context, err error) {
	code, message := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables web client access
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
