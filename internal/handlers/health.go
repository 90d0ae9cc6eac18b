package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/response"
)

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Error().Err(err).Str("dependency", name).Msg("health check failed")
			deps[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	if status != http.StatusOK {
		c.JSON(status, gin.H{
			"status":       response.StatusError,
			"msg":          "Degraded",
			"dependencies": deps,
			"environment":  h.cfg.Environment,
		})
		return
	}
	response.OK(c, status, "", gin.H{
		"dependencies": deps,
		"environment":  h.cfg.Environment,
	})
}
