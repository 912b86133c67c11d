// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds abortError, the rejection writer shared by the guards.
package middleware

import (
	"html"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// abortError stops the chain with the standard error envelope. Browsers get a
// minimal HTML page; everything else gets JSON.
func abortError(c *gin.Context, status int, code, msg string) {
	rid := RequestIDFrom(c)
	if rid == "" {
		rid = c.Writer.Header().Get(requestIDHeader)
	}

	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML {
		page := "<!doctype html><html><head><meta charset=\"utf-8\"><title>" +
			strconv.Itoa(status) + " " + html.EscapeString(http.StatusText(status)) +
			"</title></head><body><h1>" + html.EscapeString(msg) +
			"</h1><p>Request " + html.EscapeString(rid) + "</p></body></html>"
		c.Abort()
		c.Data(status, "text/html; charset=utf-8", []byte(page))
		return
	}

	c.AbortWithStatusJSON(status, gin.H{
		"request_id": rid,
		"code":       code,
		"message":    msg,
	})
}
