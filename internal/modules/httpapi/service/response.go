package service

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response — общий конверт ответов API.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusNoData  = "no_data"
)

func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Status: StatusSuccess, Data: data})
}

func SuccessMessageResponse(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, Response{Status: StatusSuccess, Message: message, Data: data})
}

// NoDataResponse — данных нет, и это нормальный ответ, а не ошибка.
func NoDataResponse(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, Response{Status: StatusNoData, Message: message})
}

func ErrorResponse(c echo.Context, code int, message string, err any) error {
	return c.JSON(code, Response{Status: StatusError, Message: message, Error: err})
}

func BadRequestResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusBadRequest, message, nil)
}
