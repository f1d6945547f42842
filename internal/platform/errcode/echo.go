package errcode

import (
	"errors"

	"github.com/labstack/echo/v4"
)

type body struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Respond writes err as a JSON error body with the mapped HTTP status.
// Errors without a taxonomy code become a 500 with an opaque message.
func Respond(c echo.Context, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return c.JSON(HTTPStatus(e.Code), body{Code: e.Code, Message: e.Message})
	}
	return c.JSON(500, body{Code: "INTERNAL", Message: "internal error"})
}
