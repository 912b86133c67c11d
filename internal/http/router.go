// Package httpapi wires the HTTP transport (Gin) to the call list manager,
// middleware and page handlers. It centralizes cross-cutting concerns such as
// tracing, correlation IDs, logging/redaction, panic recovery, metrics, CORS,
// security headers, duplicate-submit protection and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/config"
	"github.com/tbourn/go-call-agent/internal/domain"
	"github.com/tbourn/go-call-agent/internal/http/handlers"
	"github.com/tbourn/go-call-agent/internal/http/middleware"
	"github.com/tbourn/go-call-agent/internal/repo"
	"github.com/tbourn/go-call-agent/internal/services"
)

// callRepoShim adapts the repository free functions to services.CallRepo.
type callRepoShim struct{}

func (callRepoShim) InsertCall(ctx context.Context, db *gorm.DB, c *domain.Call) error {
	return repo.InsertCall(ctx, db, c)
}

func (callRepoShim) ListCalls(ctx context.Context, db *gorm.DB) ([]domain.Call, error) {
	return repo.ListCalls(ctx, db)
}

func (callRepoShim) GetCall(ctx context.Context, db *gorm.DB, id string) (*domain.Call, error) {
	return repo.GetCall(ctx, db, id)
}

func (callRepoShim) UpdateCallDetails(ctx context.Context, db *gorm.DB, id string, f domain.CallForm) error {
	return repo.UpdateCallDetails(ctx, db, id, f)
}

func (callRepoShim) UpdateCallStatus(ctx context.Context, db *gorm.DB, id string, status domain.CallStatus) error {
	return repo.UpdateCallStatus(ctx, db, id, status)
}

func (callRepoShim) DeleteCall(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCall(ctx, db, id)
}

func (callRepoShim) CallsStats(ctx context.Context, db *gorm.DB) (map[domain.CallStatus]int64, error) {
	return repo.CallsStats(ctx, db)
}

// formTokens stores processed form tokens for ttl. Expired rows are purged
// whenever a new token is recorded.
type formTokens struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// Remember implements handlers.FormTokenStore.
func (f formTokens) Remember(ctx context.Context, token, callID string) error {
	if _, err := repo.PurgeSubmissions(ctx, f.db, f.now().UTC()); err != nil {
		return err
	}
	_, err := repo.CreateSubmission(ctx, f.db, token, callID, f.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// seen implements middleware.SubmitLookup.
func (f formTokens) seen(ctx context.Context, token string, now time.Time) (bool, error) {
	rec, err := repo.GetSubmission(ctx, f.db, token, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// RegisterRoutes attaches all middleware and endpoints to r and returns the
// call list manager backing the pages.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. SubmitGuard (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per IP, unsafe methods only)
//  9. CORS and security headers
//  10. gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *services.CallListManager {
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(handlers.Templates())

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		MaskParams:  []string{"customer_name", "phone", "notes"},
	}))
	r.Use(middleware.Recovery())

	// Form posts are tiny.
	r.Use(limitBody(64 << 10))

	r.Use(middleware.Metrics("/metrics", "/health"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tokens := formTokens{db: db, ttl: cfg.FormTokenTTL, now: time.Now}
	r.Use(middleware.SubmitGuard(middleware.SubmitGuardOptions{}, tokens.seen))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CSP:          middleware.DefaultCSP,
		NoStore:      true,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	mgr := services.NewCallListManager(db, callRepoShim{})
	h := handlers.New(mgr, tokens, cfg.BasePath)

	ui := groupWithPrefix(r, cfg.BasePath)
	{
		ui.GET("/", h.Index)
		ui.POST("/form/toggle", h.ToggleForm)

		ui.POST("/calls", h.Submit)
		ui.POST("/calls/:id/edit", h.Edit)
		ui.POST("/calls/:id/delete", h.Delete)
		ui.POST("/calls/:id/status", h.SetStatus)

		ui.GET("/export/calls.csv", h.ExportCSV)
	}
	return mgr
}

// corsMiddleware allows every origin when none are configured, otherwise only
// the listed ones.
func corsMiddleware(c config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "X-Error-Code", "Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(cc)
}

// limitBody caps the request body at maxBytes. Reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
