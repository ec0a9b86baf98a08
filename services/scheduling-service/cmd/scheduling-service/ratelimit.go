package main

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/libs/config"
	"github.com/md-rashed-zaman/apptscheduler/libs/httpx"
	"github.com/redis/go-redis/v9"
)

// newRateLimit prefers a Redis fixed window shared across replicas and falls back to a
// per-process limiter.
func newRateLimit(logger *slog.Logger, limitPerMinute int) (httpx.Middleware, func()) {
	addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if addr == "" {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
		return rl.Middleware(), func() {}
	}

	redisDB := 0
	if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
		redisDB = v
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "sched:rl"))
	logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), func() { _ = rdb.Close() }
}
