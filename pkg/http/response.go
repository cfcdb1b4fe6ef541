package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// dataResponse writes the envelope. The HTTP status is always 200; the
// envelope carries the real one.
func dataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusOK, data)
}

// AcceptedResponse writes accepted response for work that continues in the background.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusAccepted, data)
}

// NoContentResponse writes no content response.
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequestResponse writes bad request error.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusBadRequest, data)
}

// UnprocessableResponse writes a 422 for a request that was understood but refused.
func UnprocessableResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusUnprocessableEntity, data)
}

// AppErrorResponse writes application error response. Errors that are not
// an *AppError become a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return dataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return dataResponse(c, http.StatusInternalServerError, "Something went wrong")
}
