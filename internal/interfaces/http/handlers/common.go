// Package handlers implements the gin handlers of the entigo HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entigo/internal/interfaces/http/middleware"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/common"
)

// respond writes data in the success envelope.
func respond[T any](c *gin.Context, status int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(status, resp)
}

// respondError maps err to its HTTP status and writes the error envelope.
// Server-side failures are masked with the code's default message.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	resp := common.NewErrorResponse(code.String(), errors.DefaultMessageForCode(code))
	resp.RequestID = middleware.GetRequestID(c)
	if ae, ok := errors.AsAppError(err); ok && status < http.StatusInternalServerError {
		resp.Error.Message = ae.Message
		if ae.Detail != "" {
			resp.Error.Details = map[string]interface{}{"detail": ae.Detail}
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the request body into dst.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.InvalidParam("invalid request body").WithCause(err)
	}
	return nil
}

//Personal.AI order the ending
