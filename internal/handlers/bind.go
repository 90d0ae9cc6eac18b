package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"kapacity/api/internal/models"
	"kapacity/api/internal/response"
)

// bindJSON decodes the body into dst. An empty body leaves dst zeroed so the
// service reports which fields are missing.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Abort(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func kindParam(c *gin.Context) (models.AccountKind, bool) {
	kind, ok := models.ParseAccountKind(c.Param("kind"))
	if !ok {
		response.Abort(c, http.StatusBadRequest, "Invalid account kind")
		return "", false
	}
	return kind, true
}

// roleParam reads the same path segment as a role; kind names are accepted
// too.
func roleParam(c *gin.Context) (models.Role, bool) {
	if role, ok := models.ParseRole(c.Param("kind")); ok {
		return role, true
	}
	if kind, ok := models.ParseAccountKind(c.Param("kind")); ok {
		return models.RoleForKind(kind), true
	}
	response.Abort(c, http.StatusBadRequest, "Invalid role")
	return "", false
}
