package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/middleware"
	"kapacity/api/internal/models"
	"kapacity/api/internal/response"
)

type signInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type resetRequest struct {
	OwnerReference string `json:"ownerReference"`
	Code           string `json:"code"`
	Password       string `json:"password"`
}

func (h HandlerSet) SignIn(c *gin.Context) {
	role, ok := roleParam(c)
	if !ok {
		return
	}
	var req signInRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.svc.Auth.SignIn(c.Request.Context(), role, req.Identifier, req.Password)
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Signed in", sessionView(session))
}

func (h HandlerSet) SignOut(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Abort(c, http.StatusUnauthorized, "No token provided.")
		return
	}
	if err := h.svc.Auth.SignOut(c.Request.Context(), principal); err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Signed out", nil)
}

func (h HandlerSet) Me(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Abort(c, http.StatusUnauthorized, "No token provided.")
		return
	}
	response.OK(c, http.StatusOK, "", gin.H{
		"account": accountView(principal.Account),
		"role":    principal.RoleClaim,
	})
}

// ForgotPassword answers the same way whether or not the identifier matches
// an account.
func (h HandlerSet) ForgotPassword(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req identifierRequest
	if !bindJSON(c, &req) {
		return
	}

	pending, err := h.svc.Passwords.RequestPasswordReset(c.Request.Context(), kind, req.Identifier, models.Channel(req.Channel))
	if err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, "If the account exists, a reset code has been sent", pendingView(pending))
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req resetRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.Passwords.ResetPassword(c.Request.Context(), req.OwnerReference, kind, req.Code, req.Password); err != nil {
		h.errs.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, "Password updated", nil)
}
