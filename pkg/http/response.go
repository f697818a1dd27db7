package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// OKResponse writes {"ok": true} merged with fields.
func OKResponse(c echo.Context, fields echo.Map) error {
	body := echo.Map{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(http.StatusOK, body)
}

// DataResponse writes data as-is with the given status.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, data)
}

// ErrorResponse writes {"ok": false, "error": code, "details"?}.
func ErrorResponse(c echo.Context, status int, code string, details interface{}) error {
	return c.JSON(status, ErrorBody{Error: code, Details: details})
}

// BadRequestResponse writes a 400 with code bad_request.
func BadRequestResponse(c echo.Context, details interface{}) error {
	return ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, details)
}

// NotFoundResponse writes a 404 with code not_found.
func NotFoundResponse(c echo.Context) error {
	return ErrorResponse(c, http.StatusNotFound, CodeNotFound, nil)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return ErrorResponse(c, http.StatusInternalServerError, CodeInternal, nil)
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorResponse(c, appErr.Status, appErr.Code, appErr.Details)
	}
	return InternalServerErrorResponse(c)
}
