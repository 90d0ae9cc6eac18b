package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/models"
	"kapacity/api/internal/response"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type moderationFunc func(ctx context.Context, kind models.AccountKind, id, reason string) error

// moderate binds the path and an optional reason, from the body or the
// query string, then runs apply.
func (h HandlerSet) moderate(c *gin.Context, msg string, apply moderationFunc) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}

	if err := apply(c.Request.Context(), kind, c.Param("id"), req.Reason); err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, msg, nil)
}

func (h HandlerSet) Block(c *gin.Context) {
	h.moderate(c, "Account blocked", h.svc.Moderation.Block)
}

func (h HandlerSet) Unblock(c *gin.Context) {
	h.moderate(c, "Account unblocked", func(ctx context.Context, kind models.AccountKind, id, _ string) error {
		return h.svc.Moderation.Unblock(ctx, kind, id)
	})
}

func (h HandlerSet) Ban(c *gin.Context) {
	h.moderate(c, "Account banned", h.svc.Moderation.Ban)
}

func (h HandlerSet) Unban(c *gin.Context) {
	h.moderate(c, "Account unbanned", func(ctx context.Context, kind models.AccountKind, id, _ string) error {
		return h.svc.Moderation.Unban(ctx, kind, id)
	})
}

// DeleteAccount soft-deletes unless hard=true, which purges the row.
func (h HandlerSet) DeleteAccount(c *gin.Context) {
	if hard, _ := strconv.ParseBool(c.Query("hard")); hard {
		h.moderate(c, "Account purged", func(ctx context.Context, kind models.AccountKind, id, _ string) error {
			return h.svc.Moderation.Purge(ctx, kind, id)
		})
		return
	}
	h.moderate(c, "Account deleted", h.svc.Moderation.Delete)
}

func (h HandlerSet) Stats(c *gin.Context) {
	stats, err := h.svc.Moderation.Stats(c.Request.Context())
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "", gin.H{"stats": stats})
}
