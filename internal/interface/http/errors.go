package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/offlineqa/pkg/errors"
)

// statusByCode maps domain error codes onto HTTP statuses. Unlisted codes are
// server errors.
var statusByCode = map[string]int{
	"invalid_input":   http.StatusBadRequest,
	"invalid_request": http.StatusBadRequest,
	"not_found":       http.StatusNotFound,
	"embedding_error": http.StatusBadGateway,
}

// HTTPError is an error with the status and code it is rendered with.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError builds an HTTPError.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fromAppError derives status and code from the outermost AppError in err.
func fromAppError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	if code == "" {
		return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
	}
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func toHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return fromAppError(err)
}

func abortWithError(c *gin.Context, err *HTTPError) {
	_ = c.Error(err)
	c.Abort()
}

// errorHandlingMiddleware writes the last handler error as an error envelope
// when nothing else was written.
func errorHandlingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		httpErr := toHTTPError(last.Err)
		message := httpErr.Message
		if message == "" {
			message = httpErr.Error()
		}

		level := slog.LevelWarn
		if httpErr.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			"code", httpErr.Code,
			"status", httpErr.Status,
			"path", c.FullPath(),
			"error", httpErr.Err,
		)
		c.JSON(httpErr.Status, errorBody{Error: errorDetail{Code: httpErr.Code, Message: message}})
	}
}
