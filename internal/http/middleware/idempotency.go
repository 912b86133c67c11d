// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements SubmitGuard, the duplicate-submit protection for the
// create/edit form. Every rendered form carries a one-time form_token; the
// guard validates it, asks the store whether it was already processed and
// annotates the request so the handler can:
//   - read the validated token (FormToken)
//   - detect a replayed submit (IsReplay) and redirect without mutating
//   - skip rate limiting for that replay (via an internal flag)
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// FormTokenField is the hidden input every call form carries.
	FormTokenField = "form_token"
	// HeaderIdempotencyKey lets scripted clients supply the token as a header.
	HeaderIdempotencyKey = "Idempotency-Key"
)

const (
	ctxKeyFormToken  = "submit.token"
	ctxKeyReplay     = "submit.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// SubmitLookup reports whether token was already processed and is still
// inside its retention window at now. Errors are treated as "not seen".
type SubmitLookup func(ctx context.Context, token string, now time.Time) (bool, error)

// SubmitGuardOptions configures token validation.
type SubmitGuardOptions struct {
	// MaxLen caps the token length. Values <= 0 default to 128.
	MaxLen int
	// Pattern restricts the token alphabet. Defaults to ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Now is the clock handed to lookup. Defaults to time.Now.
	Now func() time.Time
}

// SubmitGuard protects form posts against double submission. For POST
// requests it reads the token from the form_token field (or the
// Idempotency-Key header), rejects malformed tokens with 400, and stashes the
// token for the handler. A token that lookup has already seen marks the
// request as a replay and exempts it from rate limiting; the handler is then
// expected to skip the mutation and redirect. Posts without a token pass
// through unguarded.
func SubmitGuard(opts SubmitGuardOptions, lookup SubmitLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 128
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		token := c.PostForm(FormTokenField)
		if token == "" {
			token = c.GetHeader(HeaderIdempotencyKey)
		}
		if token == "" {
			c.Next()
			return
		}
		if len(token) > maxLen || !pat.MatchString(token) {
			abortError(c, http.StatusBadRequest, "bad_form_token", "invalid form token")
			return
		}

		c.Set(ctxKeyFormToken, token)
		if lookup != nil {
			if seen, err := lookup(c.Request.Context(), token, now().UTC()); err == nil && seen {
				c.Set(ctxKeyReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// FormToken returns the validated token stashed by SubmitGuard.
func FormToken(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyFormToken)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether SubmitGuard recognised the token as processed.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyReplay)
	b, _ := v.(bool)
	return b
}
