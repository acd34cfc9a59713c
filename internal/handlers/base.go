package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"civicpulse/internal/services"
	"civicpulse/internal/utils"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrExternalService):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RespondError writes err as a JSON error body. Internal errors are attached
// to the gin context for the request logger and hidden from the client.
func RespondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(code, gin.H{"success": false, "message": msg(code, err)})
}

// badRequest is used for malformed bodies and parameters.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

func msg(code int, err error) string {
	if err == nil {
		return ""
	}
	if code == http.StatusInternalServerError {
		return "Internal server error"
	}
	m := []rune(err.Error())
	if len(m) == 0 {
		return ""
	}
	m[0] = unicode.ToUpper(m[0])
	return string(m)
}

// paramID reads a numeric path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		badRequest(c, "Invalid id")
	}
	return id, ok
}

// flexID accepts an id sent either as a JSON number or as a string.
type flexID uint

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	id, ok := utils.ParseID(s)
	if !ok {
		return fmt.Errorf("invalid id %s", b)
	}
	*f = flexID(id)
	return nil
}

// firstNonEmpty returns the first argument that is not blank.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
