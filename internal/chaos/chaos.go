// Package chaos injects failures and latency into a service's HTTP API.
package chaos

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashendes/order-fulfillment/internal/metrics"
	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	// FailureRate is the share of requests rejected while chaos is enabled.
	FailureRate = 0.4

	minDelay = 5 * time.Second
	maxDelay = 10 * time.Second
)

// Injector holds the chaos switches for one service.
type Injector struct {
	service string

	mu       sync.RWMutex
	enabled  bool
	slowMode bool

	rnd   func() float64
	delay func() time.Duration
	sleep func(ctx context.Context, d time.Duration)
}

func NewInjector(service string) *Injector {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	var srcMu sync.Mutex
	return &Injector{
		service: service,
		rnd: func() float64 {
			srcMu.Lock()
			defer srcMu.Unlock()
			return src.Float64()
		},
		delay: func() time.Duration {
			srcMu.Lock()
			defer srcMu.Unlock()
			return minDelay + time.Duration(src.Int63n(int64(maxDelay-minDelay)))
		},
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (i *Injector) SetEnabled(enabled bool) {
	i.mu.Lock()
	i.enabled = enabled
	if !enabled {
		i.slowMode = false
	}
	i.mu.Unlock()

	metrics.ChaosFailureRate.WithLabelValues(i.service).Set(boolGauge(enabled))
	if !enabled {
		metrics.ChaosSlowMode.WithLabelValues(i.service).Set(0)
	}
	log.WithFields(log.Fields{"service": i.service, "enabled": enabled}).Info("Chaos mode changed")
}

func (i *Injector) SetSlowMode(enabled bool) {
	i.mu.Lock()
	i.slowMode = enabled
	i.mu.Unlock()

	metrics.ChaosSlowMode.WithLabelValues(i.service).Set(boolGauge(enabled))
	log.WithFields(log.Fields{"service": i.service, "slow_mode": enabled}).Info("Slow mode changed")
}

// State returns the failure and slow-mode switches.
func (i *Injector) State() (enabled, slowMode bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.enabled, i.slowMode
}

// Middleware delays or rejects API requests according to the current
// switches. The chaos control routes themselves are never affected.
func (i *Injector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.Contains(c.Request.URL.Path, "/chaos") {
			c.Next()
			return
		}

		enabled, slow := i.State()
		if slow {
			d := i.delay()
			log.WithFields(log.Fields{
				"path":     c.Request.URL.Path,
				"delay_ms": d.Milliseconds(),
			}).Debug("Chaos: Simulating slow response")
			i.sleep(c.Request.Context(), d)
		}

		if enabled && i.rnd() < FailureRate {
			log.WithField("path", c.Request.URL.Path).Warn("Chaos: Simulated failure")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{
				Status:    http.StatusServiceUnavailable,
				Message:   i.service + " temporarily unavailable",
				ErrorCode: "CHAOS_INJECTED",
				Timestamp: time.Now(),
			})
			return
		}
		c.Next()
	}
}

// Register mounts the chaos switches under /chaos on the given group.
func (i *Injector) Register(v1 *gin.RouterGroup) {
	g := v1.Group("/chaos")
	g.GET("", i.status)
	g.POST("/enable", func(c *gin.Context) {
		i.SetEnabled(true)
		c.JSON(http.StatusOK, gin.H{
			"message": "Chaos mode enabled",
			"info":    "40% of requests will fail randomly",
		})
	})
	g.POST("/disable", func(c *gin.Context) {
		i.SetEnabled(false)
		c.JSON(http.StatusOK, gin.H{"message": "Chaos mode disabled"})
	})
	g.POST("/slow", func(c *gin.Context) {
		i.SetSlowMode(true)
		c.JSON(http.StatusOK, gin.H{
			"message": "Slow mode enabled",
			"info":    "Requests will have 5-10 second delays",
		})
	})
	g.POST("/slow/disable", func(c *gin.Context) {
		i.SetSlowMode(false)
		c.JSON(http.StatusOK, gin.H{"message": "Slow mode disabled"})
	})
}

func (i *Injector) status(c *gin.Context) {
	enabled, slow := i.State()
	c.JSON(http.StatusOK, gin.H{
		"service":         i.service,
		"chaos_enabled":   enabled,
		"chaos_slow_mode": slow,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
