package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

func writeResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a 200 envelope.
func SuccessResponse(c echo.Context, data interface{}) error {
	return writeResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes a 400 envelope.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return writeResponse(c, http.StatusBadRequest, data)
}

// InternalServerErrorResponse writes a 500 envelope.
func InternalServerErrorResponse(c echo.Context) error {
	return writeResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse maps an error to its envelope, defaulting to 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return writeResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
