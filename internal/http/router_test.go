package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/config"
	"github.com/tbourn/go-call-agent/internal/domain"
	"github.com/tbourn/go-call-agent/internal/http/middleware"
	"github.com/tbourn/go-call-agent/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite("file:router_" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		BasePath:     base,
		RateRPS:      100,
		RateBurst:    50,
		FormTokenTTL: time.Hour,
		OTEL:         config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)
	return r, db
}

func postForm(r http.Handler, path string, vals url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig("/"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://anywhere.test")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
	if w.Header().Get("Content-Security-Policy") != middleware.DefaultCSP {
		t.Fatalf("CSP missing")
	}

	w = get(r, "/metrics")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w = get(r, "/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = postForm(r, "/health", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins(t *testing.T) {
	cfg := testConfig("/")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://app.example.org"}}
	r, _ := newRouter(t, cfg)

	// httptest requests target example.com, so these origins are cross-origin.
	cases := []struct {
		origin string
		want   string
	}{
		{"http://app.example.org", "http://app.example.org"},
		{"http://evil.example.net", ""},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", tc.origin)
		r.ServeHTTP(w, req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
			t.Fatalf("origin %q: ACAO=%q want %q", tc.origin, got, tc.want)
		}
	}
}

func TestCallFlow_EndToEnd(t *testing.T) {
	r, db := newRouter(t, testConfig("/"))
	ctx := context.Background()

	if w := get(r, "/"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "No calls scheduled") {
		t.Fatalf("empty list page: %d %s", w.Code, w.Body.String())
	}

	if w := postForm(r, "/form/toggle", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("toggle: %d", w.Code)
	}
	if !strings.Contains(get(r, "/").Body.String(), "Schedule New Call") {
		t.Fatalf("form should be open after toggle")
	}

	form := url.Values{
		"customer_name":           {"Ann"},
		"phone":                   {"555"},
		"date":                    {"2025-01-01"},
		"time":                    {"09:00"},
		middleware.FormTokenField: {"tok-ann"},
	}
	w := postForm(r, "/calls", form)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/" {
		t.Fatalf("submit: %d %q", w.Code, w.Header().Get("Location"))
	}

	calls, err := repo.ListCalls(ctx, db)
	if err != nil || len(calls) != 1 {
		t.Fatalf("calls=%v err=%v", calls, err)
	}
	ann := calls[0]
	if ann.CustomerName != "Ann" || ann.Status != domain.StatusScheduled {
		t.Fatalf("unexpected call %+v", ann)
	}

	// Resubmitting the same form must not create a second record.
	if w := postForm(r, "/calls", form); w.Code != http.StatusSeeOther {
		t.Fatalf("replay: %d", w.Code)
	}
	if calls, _ := repo.ListCalls(ctx, db); len(calls) != 1 {
		t.Fatalf("replay created a record: %d calls", len(calls))
	}

	page := get(r, "/").Body.String()
	if !strings.Contains(page, "Ann") || !strings.Contains(page, "1/1/2025") {
		t.Fatalf("list page missing call: %s", page)
	}

	if w := postForm(r, "/calls/"+ann.ID+"/status", url.Values{"status": {"completed"}}); w.Code != http.StatusSeeOther {
		t.Fatalf("status: %d", w.Code)
	}
	got, err := repo.GetCall(ctx, db, ann.ID)
	if err != nil || got.Status != domain.StatusCompleted {
		t.Fatalf("status not saved: %+v %v", got, err)
	}

	// Edit keeps id and status.
	postForm(r, "/calls/"+ann.ID+"/edit", nil)
	edit := url.Values{
		"customer_name":           {"Ann B"},
		"phone":                   {"556"},
		"date":                    {"2025-01-02"},
		"time":                    {"10:00"},
		middleware.FormTokenField: {"tok-edit"},
	}
	if w := postForm(r, "/calls", edit); w.Code != http.StatusSeeOther {
		t.Fatalf("edit submit: %d", w.Code)
	}
	got, _ = repo.GetCall(ctx, db, ann.ID)
	if got.CustomerName != "Ann B" || got.Status != domain.StatusCompleted {
		t.Fatalf("edit not applied: %+v", got)
	}

	csv := get(r, "/export/calls.csv")
	if csv.Code != http.StatusOK || !strings.Contains(csv.Body.String(), "Ann B") {
		t.Fatalf("export: %d %s", csv.Code, csv.Body.String())
	}

	if w := postForm(r, "/calls/"+ann.ID+"/delete", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("delete: %d", w.Code)
	}
	if calls, _ := repo.ListCalls(ctx, db); len(calls) != 0 {
		t.Fatalf("delete left %d calls", len(calls))
	}
}

func TestCallFlow_MissingFields_400(t *testing.T) {
	r, db := newRouter(t, testConfig("/"))

	w := postForm(r, "/calls", url.Values{"customer_name": {"Ann"}, middleware.FormTokenField: {"tok-x"}})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Please fill in") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if calls, _ := repo.ListCalls(context.Background(), db); len(calls) != 0 {
		t.Fatalf("invalid form created a record")
	}

	// The failed token was not remembered, so a corrected resubmit goes through.
	full := url.Values{
		"customer_name": {"Ann"}, "phone": {"555"}, "date": {"2025-01-01"}, "time": {"09:00"},
		middleware.FormTokenField: {"tok-x"},
	}
	if w := postForm(r, "/calls", full); w.Code != http.StatusSeeOther {
		t.Fatalf("corrected submit: %d", w.Code)
	}
	if calls, _ := repo.ListCalls(context.Background(), db); len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
}

func TestCallFlow_BadToken_400(t *testing.T) {
	r, _ := newRouter(t, testConfig("/"))
	w := postForm(r, "/calls", url.Values{middleware.FormTokenField: {"bad token!"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRegisterRoutes_BasePath(t *testing.T) {
	r, _ := newRouter(t, testConfig("/agent"))

	if w := get(r, "/agent/"); w.Code != http.StatusOK {
		t.Fatalf("GET /agent/ = %d", w.Code)
	}
	w := postForm(r, "/agent/form/toggle", nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/agent/" {
		t.Fatalf("toggle: %d %q", w.Code, w.Header().Get("Location"))
	}
	if !strings.Contains(get(r, "/agent/").Body.String(), `action="/agent/calls"`) {
		t.Fatalf("links must carry the base path")
	}
}

func TestRegisterRoutes_RateLimitsPosts(t *testing.T) {
	cfg := testConfig("/")
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r, _ := newRouter(t, cfg)

	if w := postForm(r, "/form/toggle", nil); w.Code != http.StatusSeeOther {
		t.Fatalf("first post: %d", w.Code)
	}
	w := postForm(r, "/form/toggle", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second post expected 429, got %d", w.Code)
	}
	// Reads are never limited.
	if w := get(r, "/"); w.Code != http.StatusOK {
		t.Fatalf("GET after limit: %d", w.Code)
	}
}

func TestFormTokens_RememberAndSeen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	ft := formTokens{db: db, ttl: time.Minute, now: func() time.Time { return now }}

	if seen, err := ft.seen(ctx, "t1", now); err != nil || seen {
		t.Fatalf("unknown token: seen=%v err=%v", seen, err)
	}
	if err := ft.Remember(ctx, "t1", "c1"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := ft.Remember(ctx, "t1", "c1"); err != nil {
		t.Fatalf("duplicate remember must be ignored: %v", err)
	}
	if seen, _ := ft.seen(ctx, "t1", now); !seen {
		t.Fatalf("token should be seen")
	}
	if seen, _ := ft.seen(ctx, "t1", now.Add(2*time.Minute)); seen {
		t.Fatalf("token should expire")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := get(r, path)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
