package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/objects"
	"github.com/scopegate/scopegate/internal/server/biz"
)

type AuthHandlersParams struct {
	fx.In

	AuthService *biz.AuthService
}

func NewAuthHandlers(params AuthHandlersParams) *AuthHandlers {
	return &AuthHandlers{
		AuthService: params.AuthService,
	}
}

type AuthHandlers struct {
	AuthService *biz.AuthService
}

// SignIn handles user authentication and returns a session JWT.
func (h *AuthHandlers) SignIn(c *gin.Context) {
	var (
		ctx = c.Request.Context()
		req objects.SignInRequest
	)

	err := c.ShouldBindJSON(&req)
	if err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid request format"))
		return
	}

	user, err := h.AuthService.AuthenticateUser(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, biz.ErrInvalidPassword) {
			JSONError(c, http.StatusUnauthorized, errors.New("Invalid email or password"))
			return
		}

		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))

		return
	}

	token, err := h.AuthService.GenerateJWTToken(ctx, user)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))
		return
	}

	c.JSON(http.StatusOK, objects.SignInResponse{
		Token: token,
		User:  objects.UserFromStorage(user),
	})
}

// IssueToken creates a new auth token for the signed-in user.
func (h *AuthHandlers) IssueToken(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := contexts.GetUser(ctx)
	if !ok {
		JSONError(c, http.StatusUnauthorized, errors.New("Authentication required"))
		return
	}

	token, err := h.AuthService.IssueToken(ctx, user.ID)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))
		return
	}

	c.JSON(http.StatusCreated, objects.TokenFromStorage(token))
}

// RevokeToken deletes one of the signed-in user's auth tokens.
func (h *AuthHandlers) RevokeToken(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := contexts.GetUser(ctx)
	if !ok {
		JSONError(c, http.StatusUnauthorized, errors.New("Authentication required"))
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("Invalid token id"))
		return
	}

	token, err := h.AuthService.GetToken(ctx, id)
	if err != nil {
		JSONError(c, http.StatusNotFound, errors.New("Token not found"))
		return
	}

	if token.UserID != user.ID && !user.IsSuperuser {
		JSONError(c, http.StatusForbidden, errors.New("Not your token"))
		return
	}

	if err := h.AuthService.RevokeToken(ctx, id); err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("Internal server error"))
		return
	}

	c.Status(http.StatusNoContent)
}

// Me returns the authenticated principal.
func (h *AuthHandlers) Me(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := contexts.GetUser(ctx)
	if !ok {
		JSONError(c, http.StatusUnauthorized, errors.New("Authentication required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": objects.UserFromStorage(user)})
}
