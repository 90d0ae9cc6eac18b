// Package response writes the uniform JSON envelope:
// {"status": "ok"|"error", "msg": "...", ...payload}.
package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kapacity/api/internal/apperr"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OK writes a success envelope. Payload keys are merged at the top level.
func OK(c *gin.Context, status int, msg string, payload gin.H) {
	body := gin.H{"status": StatusOK}
	if msg != "" {
		body["msg"] = msg
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status": StatusError,
		"msg":    msg,
	})
}

// Writer maps errors onto the envelope. Internal errors are logged in full;
// their raw text reaches the client only when exposeErrors is set.
type Writer struct {
	log          zerolog.Logger
	exposeErrors bool
}

func NewWriter(log zerolog.Logger, exposeErrors bool) Writer {
	return Writer{log: log, exposeErrors: exposeErrors}
}

func (w Writer) Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)

	if kind != apperr.KindInternal {
		var appErr *apperr.Error
		errors.As(err, &appErr)
		Abort(c, status, appErr.Msg)
		return
	}

	w.log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Msg("request failed")

	body := gin.H{
		"status": StatusError,
		"msg":    "Internal server error",
	}
	if w.exposeErrors {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
