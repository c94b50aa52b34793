package httpapi

import (
	"errors"
	"net/http"

	"bloomcart-be/internal/apperr"
	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string              `json:"error"`
	Kind   apperr.Kind         `json:"kind,omitempty"`
	Reason apperr.UploadReason `json:"reason,omitempty"`
	Fields apperr.FieldErrors  `json:"fields,omitempty"`

	// Session is set when a step was rejected but the entered data was kept.
	Session *checkout.Session `json:"session,omitempty"`
}

func writeError(c *gin.Context, err error) {
	writeSessionError(c, nil, err)
}

func writeSessionError(c *gin.Context, session *checkout.Session, err error) {
	log := logger.FromCtx(c.Request.Context()).With(
		zap.String("layer", "handler"),
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
	)

	var e *apperr.Error
	if !errors.As(err, &e) {
		log.Error("unhandled request error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", string(e.Kind)), zap.Error(err))
	}

	c.AbortWithStatusJSON(status, errorBody{
		Error:   e.Message,
		Kind:    e.Kind,
		Reason:  e.Reason,
		Fields:  e.Fields,
		Session: session,
	})
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, apperr.Validation("id", "must be a valid checkout session id"))
		return uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithCheckoutID(c.Request.Context(), id.String()))
	return id, true
}

func orderNumber(c *gin.Context) (string, bool) {
	number := c.Param("number")
	if _, err := utils.ParseOrderNumber(number); err != nil {
		writeError(c, apperr.Validation("number", "must be an order number like ORD-000001"))
		return "", false
	}
	return number, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		writeError(c, apperr.Validation("body", "malformed request body"))
		return false
	}
	return true
}
