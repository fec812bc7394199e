package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"emprendo-intake/internal/domain"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

var notFound = []error{
	domain.ErrFormNotFound,
	domain.ErrFormClosed,
	domain.ErrInviteNotFound,
	domain.ErrApplicationNotFound,
	domain.ErrResultNotFound,
	domain.ErrRunNotFound,
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and answered with a generic message.
func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			c.JSON(http.StatusNotFound, errorResponse{Error: target.Error()})
			return
		}
	}
	log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}
