package httpapi

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// Error is an API failure rendered as {"error": Message, "detail": Detail}.
type Error struct {
	Code    int
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func newError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrorHandler is the centralized fiber error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}

	var apiErr *Error
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
		body["error"] = apiErr.Message
		if apiErr.Detail != "" {
			body["detail"] = apiErr.Detail
		}
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		body["error"] = fiberErr.Message
	}

	if code >= fiber.StatusInternalServerError {
		log.Printf("ERROR: %s %s -> %d: %v", c.Method(), c.OriginalURL(), code, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(code).JSON(body)
}
