package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/auth"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimitApiGlobal: "10-M",
		RateLimitApiRooms:  "5-M",
		RateLimitWsIp:      "5-M",
		RateLimitWsUser:    "5-M",
	}
}

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl, err := NewRateLimiter(testConfig(), rc)
	require.NoError(t, err)

	return rl, mr
}

func TestNewRateLimiter_Memory(t *testing.T) {
	rl, err := NewRateLimiter(testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, rl)
}

func TestMiddlewareForEndpoint_Rooms(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/rooms", rl.MiddlewareForEndpoint("rooms"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest(http.MethodPost, "/rooms", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	req, _ := http.NewRequest(http.MethodPost, "/rooms", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestMiddlewareForEndpoint_KeysByTokenSubject(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", rl.MiddlewareForEndpoint("global"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusOK, resp.Code)
	}

	req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestCheckWebSocketIP(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request, _ = http.NewRequest(http.MethodGet, "/ws", nil)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.CheckWebSocketIP(ctx))
	}
	assert.False(t, rl.CheckWebSocketIP(ctx))
}

func TestCheckWebSocketUser(t *testing.T) {
	rl, mr := newTestLimiter(t)
	defer mr.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.NoError(t, rl.CheckWebSocketUser(ctx, "user1"))
	}
	assert.Error(t, rl.CheckWebSocketUser(ctx, "user1"))
}

func TestMiddlewareForEndpoint_RedisFailure_FailsOpen(t *testing.T) {
	rl, mr := newTestLimiter(t)
	mr.Close()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/fail-open", rl.MiddlewareForEndpoint("global"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest(http.MethodGet, "/fail-open", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}
