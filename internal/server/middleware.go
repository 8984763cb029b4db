// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// ============================================================================
// Admin Authentication
// ============================================================================

// DefaultTokenCost is the bcrypt cost used by HashToken callers.
const DefaultTokenCost = 12

// HashToken returns the bcrypt hash stored in server.admin_token_hash.
func HashToken(token string, cost int) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAdminToken reports whether token matches the bcrypt hash. Either
// argument being empty is a mismatch.
func CheckAdminToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// AdminAuthMiddleware guards knowledge mutations with a bearer token.
// With no hash configured the guarded routes answer 403.
func AdminAuthMiddleware(tokenHash string, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := GetClientIP(r)

			if tokenHash == "" {
				logger.Warn("admin denied", "ip", clientIP, "reason", "admin_disabled")
				writeError(w, http.StatusForbidden, "admin endpoints are disabled")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Warn("admin denied", "ip", clientIP, "reason", "missing_bearer")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !CheckAdminToken(strings.TrimPrefix(authHeader, "Bearer "), tokenHash) {
				logger.Warn("admin denied", "ip", clientIP, "reason", "invalid_token")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// CORS Configuration and Middleware
// ============================================================================

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins. "*" allows any origin and
	// "*.example.com" any subdomain.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	// MaxAge is the max age (in seconds) for preflight cache.
	MaxAge int
}

// DefaultCORSConfig returns the CORS configuration for origins.
func DefaultCORSConfig(origins []string) *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}
}

func (c *CORSConfig) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, strings.TrimPrefix(allowed, "*")) {
			return true
		}
	}
	return false
}

// CORSMiddleware sets Access-Control-* headers for allowed origins and
// answers preflight requests.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if config.isOriginAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", config.MaxAge))
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Rate Limiter
// ============================================================================

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	lastSweep  time.Time

	// idle is how long an unused bucket is kept.
	idle time.Duration
}

// NewRateLimiter allows perSecond sustained requests with the given burst
// per client.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		lastSweep:  time.Now(),
		idle:       10 * time.Minute,
	}
}

// Allow reports whether ip may make a request now.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	now := time.Now()
	limiter, ok := rl.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[ip] = limiter
	}
	rl.lastAccess[ip] = now
	if now.Sub(rl.lastSweep) > rl.idle {
		rl.cleanup(now)
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// cleanup drops buckets unused for longer than idle. Caller holds mu.
func (rl *RateLimiter) cleanup(now time.Time) {
	for ip, seen := range rl.lastAccess {
		if now.Sub(seen) > rl.idle {
			delete(rl.lastAccess, ip)
			delete(rl.limiters, ip)
		}
	}
	rl.lastSweep = now
}

// RateLimitMiddleware answers 429 once a client exceeds its bucket.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(GetClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Request Logging
// ============================================================================

// LoggingMiddleware logs one line per request with status and timing. The
// chi response wrapper keeps http.Hijacker available for websocket upgrades.
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Microsecond),
				"ip", GetClientIP(r),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}

// ============================================================================
// Security Headers Middleware
// ============================================================================

// SecurityHeadersMiddleware returns HTTP middleware that adds security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// Recovery Middleware
// ============================================================================

// RecoveryMiddleware turns a handler panic into a logged 500.
func RecoveryMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"err", err,
						"stack", string(debug.Stack()),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ============================================================================
// IP Extraction Helper
// ============================================================================

// trustedProxies may set X-Forwarded-For and X-Real-IP.
var trustedProxies = mustParseCIDRs(
	"127.0.0.1/32",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func isTrustedProxy(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func getRemoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// GetClientIP returns the client address. Forwarding headers are only
// honoured when the direct peer is a trusted proxy.
func GetClientIP(r *http.Request) string {
	connIP := getRemoteIP(r.RemoteAddr)
	if !isTrustedProxy(connIP) {
		return connIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return connIP
}
