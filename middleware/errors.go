// Package middleware holds the gin middleware shared by the API and the
// rendered views.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const jsonErrorsKey = "jsonErrors"

// ErrorHandler renders the last error recorded on the context. /api
// requests and routes marked with JSONErrors get a JSON envelope;
// everything else gets the error page.
func ErrorHandler(log *logrus.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := apperror.Normalize(c.Errors.Last().Err)

		entry := log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": appErr.StatusCode,
		})
		if appErr.Err != nil {
			entry = entry.WithError(appErr.Err)
		}
		if appErr.Operational && appErr.StatusCode < http.StatusInternalServerError {
			entry.Debug(appErr.Message)
		} else {
			entry.Error(appErr.Message)
		}

		if strings.HasPrefix(c.Request.URL.Path, "/api") || c.GetBool(jsonErrorsKey) {
			c.JSON(appErr.StatusCode, errorBody(appErr, production))
			return
		}
		c.HTML(appErr.StatusCode, "error.html", gin.H{
			"title": "Something went wrong!",
			"msg":   viewMessage(appErr, production),
			"user":  CurrentUser(c),
		})
	}
}

func errorBody(appErr *apperror.AppError, production bool) gin.H {
	if !production {
		body := gin.H{
			"status":  appErr.Status,
			"message": appErr.Message,
			"error": gin.H{
				"statusCode":    appErr.StatusCode,
				"status":        appErr.Status,
				"isOperational": appErr.Operational,
			},
			"stack": appErr.Stack,
		}
		if appErr.Err != nil {
			body["error"].(gin.H)["cause"] = appErr.Err.Error()
		}
		return body
	}
	if appErr.Operational {
		return gin.H{"status": appErr.Status, "message": appErr.Message}
	}
	return gin.H{"status": apperror.StatusError, "message": apperror.GenericMessage}
}

func viewMessage(appErr *apperror.AppError, production bool) string {
	if !production || appErr.Operational {
		return appErr.Message
	}
	return "Please try again later."
}

// JSONErrors marks a route outside /api whose callers expect JSON errors.
func JSONErrors(c *gin.Context) {
	c.Set(jsonErrorsKey, true)
	c.Next()
}

// Recovery turns a panic into an error for ErrorHandler.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		_ = c.Error(fmt.Errorf("panic: %v", recovered))
		c.Abort()
	})
}

// Fail records err and stops the chain.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
