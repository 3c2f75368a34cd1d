// Package ratelimit enforces connection and admin-API rate limits using
// ulule/limiter with a Redis-backed store, falling back to in-memory when
// Redis is disabled.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/auth"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/config"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
)

// RateLimiter holds every configured limiter bucket: the admin REST
// surface (global, rooms) and WebSocket connection attempts (by IP, by
// user).
type RateLimiter struct {
	apiGlobal *limiter.Limiter
	apiRooms  *limiter.Limiter
	wsIP      *limiter.Limiter
	wsUser    *limiter.Limiter
	store     limiter.Store
}

// NewRateLimiter builds a RateLimiter from cfg, using redisClient as the
// shared store when non-nil.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitApiGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}
	apiRoomsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitApiRooms)
	if err != nil {
		return nil, fmt.Errorf("invalid API rooms rate: %w", err)
	}
	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIp)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}
	wsUserRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsUser)
	if err != nil {
		return nil, fmt.Errorf("invalid WS user rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "limiter:v1:"})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using memory store (redis disabled)")
	}

	return &RateLimiter{
		apiGlobal: limiter.New(store, apiGlobalRate),
		apiRooms:  limiter.New(store, apiRoomsRate),
		wsIP:      limiter.New(store, wsIPRate),
		wsUser:    limiter.New(store, wsUserRate),
		store:     store,
	}, nil
}

// MiddlewareForEndpoint enforces a named admin-REST bucket ("rooms" or
// anything else, which falls back to the global bucket), keyed by the
// bearer token's unverified subject when present, otherwise by IP.
func (rl *RateLimiter) MiddlewareForEndpoint(endpointType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiterInstance := rl.apiGlobal
		if endpointType == "rooms" {
			limiterInstance = rl.apiRooms
		}

		key := c.ClientIP()
		if token := bearerToken(c); token != "" {
			if subject := auth.SubjectFromToken(token); subject != "" {
				key = subject
			}
		}

		ctx := c.Request.Context()
		lctx, err := limiterInstance.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), endpointType).Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	h := c.GetHeader("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// CheckWebSocketIP enforces the per-IP WS-connect limit before the
// upgrade. Returns false (and writes a 429) if the limit was reached.
func (rl *RateLimiter) CheckWebSocketIP(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	ipContext, err := rl.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed (ip)", zap.Error(err))
		return true
	}
	if ipContext.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.Header("Retry-After", strconv.FormatInt(ipContext.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this IP"})
		return false
	}
	return true
}

// CheckWebSocketUser enforces the per-authenticated-user WS-connect
// limit, called once the auth handshake has produced a user id.
func (rl *RateLimiter) CheckWebSocketUser(ctx context.Context, userID string) error {
	userContext, err := rl.wsUser.Get(ctx, userID)
	if err != nil {
		logging.Error(ctx, "ws rate limiter store failed (user)", zap.Error(err))
		return nil
	}
	if userContext.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "user").Inc()
		return fmt.Errorf("rate limit exceeded for user %s", userID)
	}
	return nil
}
