package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/utils"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const statusSuccess = "success"

func sendData(c *gin.Context, status int, doc any) {
	c.JSON(status, gin.H{
		"status": statusSuccess,
		"data":   gin.H{"data": doc},
	})
}

func sendList(c *gin.Context, docs any, results int) {
	c.JSON(http.StatusOK, gin.H{
		"status":      statusSuccess,
		"requestedAt": middleware.RequestedAt(c),
		"results":     results,
		"data":        gin.H{"data": docs},
	})
}

// httpError records err on the span and hands it to the error middleware.
func httpError(err error, span trace.Span, c *gin.Context) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	middleware.Fail(c, err)
}

// bindBody decodes a JSON body onto dst. An empty body leaves dst as is.
func bindBody(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEMultipartPOSTForm
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, error) {
	return database.ParseObjectID("_id", c.Param(name))
}

// baseURL is the scheme and host the client used to reach us.
func baseURL(c *gin.Context) string {
	scheme := "http"
	if utils.IsSecureRequest(c.Request) {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
