package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/objects"
	"github.com/scopegate/scopegate/internal/server/biz"
	"github.com/scopegate/scopegate/internal/server/middleware"
	"github.com/scopegate/scopegate/internal/storage"
)

type UserHandlersParams struct {
	fx.In

	PermissionService *biz.PermissionService
}

func NewUserHandlers(params UserHandlersParams) *UserHandlers {
	return &UserHandlers{
		PermissionService: params.PermissionService,
	}
}

type UserHandlers struct {
	PermissionService *biz.PermissionService
}

// SetPermissions replaces a user's direct permission groups. The current
// user must be allowed to edit the target and to grant every group.
func (h *UserHandlers) SetPermissions(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid user id"))
		return
	}

	var req objects.SetPermissionsRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	user, err := h.PermissionService.SetUserPermissions(ctx, id, req.Permissions)
	if err != nil {
		if storage.IsNotFound(err) {
			JSONError(c, http.StatusNotFound, errors.New("User not found"))
			return
		}

		middleware.AbortWithDomainError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"user": objects.UserFromStorage(user)})
}
