package middleware

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/watchroom/watchroom-backend/errors"
	"github.com/watchroom/watchroom-backend/logger"
)

// ErrorHandler renders the last error pushed with c.Error as JSON.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last()
		err := last.Err

		var appError *errors.AppError
		if stderrors.As(err, &appError) {
			statusCode := appError.GetHTTPStatus()
			logger.LogHTTPError(c, err, statusCode, fmt.Sprintf("%s error", appError.Type))
			c.JSON(statusCode, appErrorResponse(appError, statusCode))
			return
		}

		if last.Type == gin.ErrorTypeBind {
			logger.LogHTTPError(c, err, http.StatusBadRequest, "Request binding error")

			response := gin.H{
				"type":    string(errors.ValidationError),
				"message": "Failed to bind request",
				"code":    strconv.Itoa(http.StatusBadRequest),
			}
			if gin.IsDebugging() {
				response["details"] = err.Error()
			}
			c.JSON(http.StatusBadRequest, response)
			return
		}

		logger.LogHTTPError(c, err, http.StatusInternalServerError, "Unexpected server error")

		response := gin.H{
			"type":    string(errors.ServerError),
			"message": "Internal Server Error",
			"code":    strconv.Itoa(http.StatusInternalServerError),
		}
		if gin.IsDebugging() {
			response["details"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, response)
	}
}

func appErrorResponse(appError *errors.AppError, statusCode int) gin.H {
	response := gin.H{}

	// Data goes first so the fixed keys below always win.
	for k, v := range appError.Data {
		response[k] = v
	}

	response["type"] = string(appError.Type)
	response["message"] = appError.Message
	response["code"] = strconv.Itoa(statusCode)
	if appError.Code != "" {
		response["code"] = appError.Code
	}

	if appError.Detail != "" && (gin.IsDebugging() || userFacing(appError.Type)) {
		response["details"] = appError.Detail
	}
	return response
}

// userFacing reports whether an error's detail is meant to be shown to the user.
func userFacing(t errors.ErrorType) bool {
	switch t {
	case errors.ValidationError, errors.NotFoundError, errors.ConflictError, errors.StateError, errors.RateLimitError:
		return true
	default:
		return false
	}
}
