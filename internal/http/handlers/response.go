// Package handlers renders the call list UI and translates form posts into
// CallListManager operations.
//
// Every mutation follows post/redirect/get: a successful POST answers
// 303 See Other pointing at the list page, so reloading never resubmits.
// Errors use one envelope (request id, stable code, message) rendered as an
// HTML page for browsers and as JSON for everything else.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-call-agent/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every route.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// errorPage is the data handed to error.html.
type errorPage struct {
	ErrorResponse
	Status     int
	StatusText string
}

// fail aborts with the error envelope. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("request failed")
	}

	if wantsHTML(c) {
		c.Abort()
		c.HTML(status, "error.html", errorPage{
			ErrorResponse: resp,
			Status:        status,
			StatusText:    http.StatusText(status),
		})
		return
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// wantsHTML reports whether the client prefers an HTML rendering. Clients
// that send no Accept header get JSON.
func wantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

// seeOther finishes a successful post by redirecting to the list page.
func (h *Handlers) seeOther(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, link(h.basePath, "/"))
}
