package utils

import (
	"errors"
	"net/http"

	"orchestrator-service/logger"
	"orchestrator-service/src/schemas"

	"github.com/gin-gonic/gin"
)

// SendError writes an RFC 7807 error response and logs it.
func SendError(ctx *gin.Context, status int, title string, detail string, instance string) {
	errorResp := schemas.NewErrorResponse(status, title, detail, instance)
	ctx.JSON(status, errorResp)
	logger.Logger.Error(title + ": " + detail)
}

// SendServiceError writes an error returned by the service layer. Errors
// that already are RFC 7807 responses keep their status; anything else
// becomes a 500.
func SendServiceError(ctx *gin.Context, err error, instance string) {
	var resp *schemas.ErrorResponse
	if errors.As(err, &resp) {
		ctx.JSON(resp.Status, resp)
		logger.Logger.Error(resp.Title + ": " + resp.Detail)
		return
	}
	SendError(ctx, http.StatusInternalServerError, "Internal Server Error", err.Error(), instance)
}
