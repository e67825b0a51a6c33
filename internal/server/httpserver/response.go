package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/gin-gonic/gin"
)

type successResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

type errorResponse struct {
	Success    bool                `json:"success"`
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Errors     []common.FieldError `json:"errors"`
	Detail     string              `json:"detail,omitempty"`
}

func respond(c *gin.Context, status int, data any, message string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, successResponse{
		Success:    true,
		StatusCode: status,
		Data:       data,
		Message:    message,
	})
}

// statusFor maps an error to its HTTP status. The Kind of the outermost
// *common.Error wins so that a wrapped cause never changes the status.
func statusFor(err error) int {
	kind := err
	var e *common.Error
	if errors.As(err, &e) && e.Kind != nil {
		kind = e.Kind
	}

	switch {
	case errors.Is(kind, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(kind, common.ErrorUnauthorized),
		errors.Is(kind, common.ErrInvalidToken),
		errors.Is(kind, common.ErrTokenExpired),
		errors.Is(kind, common.ErrRefreshTokenExpired),
		errors.Is(kind, common.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(kind, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(kind, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(kind, common.ErrorRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newErrorResponse(err error, status int, withDetail bool) errorResponse {
	resp := errorResponse{
		StatusCode: status,
		Errors:     []common.FieldError{},
	}

	if msg, ok := common.PublicMessage(err); ok && status != http.StatusInternalServerError {
		resp.Message = msg
	} else {
		resp.Message = defaultMessage(status)
	}

	var e *common.Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		resp.Errors = e.Fields
	}

	if withDetail {
		resp.Detail = err.Error()
	}
	return resp
}

func defaultMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Unauthorized request"
	case http.StatusInternalServerError:
		return "Something went wrong"
	default:
		return http.StatusText(status)
	}
}
