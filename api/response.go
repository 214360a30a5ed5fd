package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/travelbooking/internal/domain"
	"github.com/Domenick1991/travelbooking/internal/logger"
	"github.com/gin-gonic/gin"
)

// ClientSessionHeader identifies the browsing client whose session state a
// request reads or writes.
const ClientSessionHeader = "X-Client-Session"

type envelope struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func okMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Success: false, Message: message})
}

// fail maps the error taxonomy onto HTTP statuses.
func fail(c *gin.Context, err error) {
	var fields domain.FieldErrors
	var ve domain.ValidationError
	switch {
	case errors.As(err, &fields):
		c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "validation failed", Errors: fields})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, envelope{Success: false, Message: ve.Msg, Errors: map[string]string{ve.Field: ve.Msg}})
	case errors.Is(err, domain.ErrDuplicateCard):
		c.JSON(http.StatusBadRequest, envelope{Success: false, Message: err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: err.Error()})
	case domain.IsUpstreamUnavailable(err):
		c.JSON(http.StatusBadGateway, envelope{Success: false, Message: "upstream unavailable"})
	default:
		logger.GetLogger("api").Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Message: "internal error"})
	}
}

func clientID(c *gin.Context) string {
	return c.GetHeader(ClientSessionHeader)
}
