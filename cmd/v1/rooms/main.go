package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/auth"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/config"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/directory"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/gamemap"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/health"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/middleware"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/player"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/ratelimit"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/room"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/roommanager"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/tracing"
)

func main() {
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if cfg.OtelEnabled {
		tp, err := tracing.InitTracer(context.Background(), cfg.OtelServiceName, cfg.OtelCollectorAddr)
		if err != nil {
			logging.Fatal(context.Background(), "failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logging.Error(context.Background(), "tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	var rdb *redis.Client
	if cfg.RedisEnabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	dir := directory.New(cfg, rdb)

	validator := auth.NewValidator(cfg.AuthServiceURL)
	rateLimiter, err := ratelimit.NewRateLimiter(cfg, rdb)
	if err != nil {
		logging.Fatal(context.Background(), "failed to build rate limiter", zap.Error(err))
	}

	manager := roommanager.New(dir, roommanager.Config{
		DefaultKingPower:   cfg.DefaultKingPower,
		DefaultCastlePower: cfg.DefaultCastlePower,
		ColorsCount:        cfg.ColorsCount,
	}, cfg.ReplicaID)

	server := &server{cfg: cfg, dir: dir, validator: validator, rateLimiter: rateLimiter, manager: manager}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID())

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(dir.Pinger)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	v1 := router.Group("/api/v1/rooms")
	v1.Use(rateLimiter.MiddlewareForEndpoint("rooms"))
	v1.POST("/", server.createRoom)
	v1.GET("/", server.listRooms)

	router.GET("/ws/rooms/:room_key/", server.serveWs)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	go func() {
		logging.Info(context.Background(), "rooms server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal(context.Background(), "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(context.Background(), "shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error(context.Background(), "server forced to shutdown", zap.Error(err))
	}
}

// server bundles the handlers sharing the service's dependencies.
type server struct {
	cfg         *config.Config
	dir         *directory.Directory
	validator   *auth.Validator
	rateLimiter *ratelimit.RateLimiter
	manager     *roommanager.Manager

	upgraderOnce sync.Once
	upgrader     websocket.Upgrader
}

// createRoom is POST /api/v1/rooms/: persists a {map, meta} body and
// returns the minted room key.
func (s *server) createRoom(c *gin.Context) {
	var mapAndMeta gamemap.MapAndMeta
	if err := c.ShouldBindJSON(&mapAndMeta); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roomKey, err := s.manager.SaveRoom(c.Request.Context(), mapAndMeta)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to save room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room_key": roomKey})
}

// listRooms is GET /api/v1/rooms/?limit=1..50: the public lobby listing.
func (s *server) listRooms(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 && v <= 50 {
			limit = v
		}
	}
	entries, err := s.dir.Lobby.GetRooms(c.Request.Context(), 0, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to list lobby rooms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list rooms"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) wsUpgrader() websocket.Upgrader {
	s.upgraderOnce.Do(func() {
		allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
		s.upgrader = websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originURL, err := url.Parse(origin)
				if err != nil {
					return false
				}
				for _, allowed := range allowedOrigins {
					allowedURL, err := url.Parse(allowed)
					if err == nil && originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
						return true
					}
				}
				return false
			},
		}
	})
	return s.upgrader
}

// serveWs is GET /ws/rooms/:room_key/?user_id=<int>&username=<str>: the
// single bidirectional per-player channel. Grounded on
// original_source's router/ws/rooms.py.
func (s *server) serveWs(c *gin.Context) {
	if !s.rateLimiter.CheckWebSocketIP(c) {
		return
	}

	roomKey := c.Param("room_key")
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id must be an integer"})
		return
	}
	username := c.Query("username")

	conn, err := s.wsUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	metrics.ActivePlayerConnections.Inc()
	defer metrics.ActivePlayerConnections.Dec()

	var r *room.Room
	var p *player.Player
	defer func() { s.manager.Cleanup(ctx, r, p) }()

	r, err = s.manager.GetOrCreateRoom(ctx, roomKey)
	if err != nil {
		closeWithCode(conn, closeCodeFor(err), err.Error())
		return
	}

	height, width := r.Dimensions()
	p = player.New(userID, username, height, width, conn, s.validator)
	metrics.RoomPlayers.WithLabelValues(roomKey).Inc()
	defer metrics.RoomPlayers.WithLabelValues(roomKey).Dec()

	go p.WritePump()
	defer p.Close()

	if err := s.manager.PlayWithRoom(ctx, r, p); err != nil {
		logging.Info(ctx, "room session ended",
			zap.String("room_id", roomKey), zap.Int("player_id", userID), zap.Error(err))
		closeWithCode(conn, closeCodeFor(err), err.Error())
	}
}

// closeCodeFor maps a domain error to the WebSocket close code table.
func closeCodeFor(err error) int {
	switch {
	case errors.Is(err, roommanager.ErrWrongReplica):
		return 1008
	case errors.Is(err, room.ErrNoSlots):
		return 4010
	case errors.Is(err, room.ErrInGame):
		return 4020
	case errors.Is(err, player.ErrTokenInvalid):
		return 4030
	case errors.Is(err, player.ErrWrongAuthFlow):
		return 4031
	case errors.Is(err, directory.ErrRoomNotFound):
		return 4040
	default:
		return 4999
	}
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
