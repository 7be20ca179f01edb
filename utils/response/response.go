package response

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/course-ingest/utils/apperr"
)

// Response is the JSON envelope of every API reply.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Data: data})
}

// Accepted is for work that continues in the background.
func Accepted(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{Success: true, Message: message, Data: data})
}

func Error(c *fiber.Ctx, status int, message, code string) error {
	return fail(c, status, &ErrorDetail{Code: code, Message: message})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message, "BAD_REQUEST")
}

// ValidationError lists the offending form or body fields.
func ValidationError(c *fiber.Ctx, fields map[string]string) error {
	return fail(c, fiber.StatusUnprocessableEntity, &ErrorDetail{
		Code:    apperr.ErrValidation.Code,
		Message: "Validation failed",
		Details: fields,
	})
}

// ServiceUnavailable is retryable by definition.
func ServiceUnavailable(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusServiceUnavailable, &ErrorDetail{
		Code:      "SERVICE_UNAVAILABLE",
		Message:   message,
		Retryable: true,
	})
}

// FromError renders a classified error with its own status and code.
// Unclassified errors become INTERNAL_ERROR without leaking their text.
func FromError(c *fiber.Ctx, err error) error {
	e := apperr.FromError(err)
	return fail(c, e.Status, &ErrorDetail{Code: e.Code, Message: e.Message, Retryable: e.Retryable})
}

func fail(c *fiber.Ctx, status int, detail *ErrorDetail) error {
	return c.Status(status).JSON(Response{Success: false, Error: detail})
}
