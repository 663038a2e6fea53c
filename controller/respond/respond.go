package respond

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"mydayplanner/services"
)

// Status maps a service error to its HTTP status and client-facing message.
func Status(err error) (int, string) {
	var perr *services.ProviderError
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrAuthExpired):
		return http.StatusUnauthorized, services.ErrAuthExpired.Error()
	case errors.Is(err, services.ErrNotFoundLocal):
		return http.StatusNotFound, services.ErrNotFoundLocal.Error()
	case errors.As(err, &perr):
		return http.StatusBadGateway, perr.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func Error(c *gin.Context, err error) {
	status, msg := Status(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BindError answers a request body that failed to decode or validate.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s: failed %s", fieldName(fe), fe.Tag()))
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": strings.Join(parts, "; ")})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.Namespace()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// UserID is set by the access token middleware.
func UserID(c *gin.Context) string {
	return c.GetString("userId")
}
