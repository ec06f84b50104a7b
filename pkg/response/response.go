package response

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

// Generic error codes; job failures reuse the model's error kinds.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeServiceError    = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// JobError maps a typed job failure to an HTTP status, carrying the
// error kind as the code so the shim can branch without parsing text.
func JobError(c *fiber.Ctx, err *model.JobError, message string) error {
	status := fiber.StatusInternalServerError
	switch err.Kind {
	case model.ErrKindAuth:
		status = fiber.StatusUnauthorized
	case model.ErrKindPayload:
		status = fiber.StatusBadRequest
	case model.ErrKindNetwork, model.ErrKindRemote:
		status = fiber.StatusBadGateway
	case model.ErrKindTimeout:
		status = fiber.StatusGatewayTimeout
	}
	return Error(c, status, string(err.Kind), message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
