package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scopegate/scopegate/internal/fields"
	"github.com/scopegate/scopegate/internal/objects"
	"github.com/scopegate/scopegate/internal/permissions"
	"github.com/scopegate/scopegate/internal/server/biz"
	"github.com/scopegate/scopegate/internal/storage"
)

// AbortWithError aborts the request with a JSON error response and adds
// the error to the gin context for access logging.
func AbortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, objects.ErrorResponse{
		Error: objects.Error{
			Type:    http.StatusText(status),
			Message: err.Error(),
		},
	})
}

// AbortWithDomainError maps domain errors to their HTTP responses.
func AbortWithDomainError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		tokenNotFound *biz.TokenNotFoundError
		tokenExpired  *biz.TokenExpiredError
		writeErr      *fields.WriteError
		insufficient  *biz.InsufficientPermissionsError
	)

	switch {
	case errors.As(err, &tokenNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, objects.ErrorResponse{
			Error: objects.Error{
				Type:    "TokenNotFound",
				Message: "Token not found.",
				Token:   tokenNotFound.Token,
			},
		})
	case errors.As(err, &tokenExpired):
		c.AbortWithStatusJSON(http.StatusBadRequest, objects.ErrorResponse{
			Error: objects.Error{
				Type:      "TokenExpired",
				Message:   "Token expired.",
				Token:     tokenExpired.Token,
				ExpiredAt: tokenExpired.ExpiresAt.Format(biz.TokenExpiredTimeFormat),
			},
		})
	case errors.As(err, &writeErr):
		c.AbortWithStatusJSON(http.StatusForbidden, objects.ErrorResponse{
			Error: objects.Error{
				Type:    "FieldsNotWritable",
				Message: writeErr.Error(),
				Fields:  writeErr.Fields,
			},
		})
	case errors.As(err, &insufficient):
		c.AbortWithStatusJSON(http.StatusForbidden, objects.ErrorResponse{
			Error: objects.Error{
				Type:    http.StatusText(http.StatusForbidden),
				Message: insufficient.Error(),
			},
		})
	case permissions.IsForbidden(err):
		c.AbortWithStatusJSON(http.StatusForbidden, objects.ErrorResponse{
			Error: objects.Error{
				Type:    http.StatusText(http.StatusForbidden),
				Message: err.Error(),
			},
		})
	case errors.Is(err, storage.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, objects.ErrorResponse{
			Error: objects.Error{
				Type:    http.StatusText(http.StatusNotFound),
				Message: "Not found.",
			},
		})
	case errors.Is(err, biz.ErrInvalidJWT), errors.Is(err, biz.ErrInvalidPassword):
		c.AbortWithStatusJSON(http.StatusUnauthorized, objects.ErrorResponse{
			Error: objects.Error{
				Type:    http.StatusText(http.StatusUnauthorized),
				Message: err.Error(),
			},
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, objects.ErrorResponse{
			Error: objects.Error{
				Type:    http.StatusText(http.StatusInternalServerError),
				Message: err.Error(),
			},
		})
	}
}
