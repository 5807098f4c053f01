package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/build"
	"github.com/scopegate/scopegate/internal/scopes"
)

type SystemHandlersParams struct {
	fx.In
}

func NewSystemHandlers(params SystemHandlersParams) *SystemHandlers {
	return &SystemHandlers{}
}

type SystemHandlers struct{}

// Health reports liveness.
func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": build.Version,
	})
}

// Scopes lists the registered scope vocabulary.
func (h *SystemHandlers) Scopes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": scopes.AllScopes()})
}
