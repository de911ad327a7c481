package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/formsdb/internal/types"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SuccessResponse writes data as JSON with the given status.
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse writes the standard error envelope.
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": timestamp(),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// ValidationErrorResponse writes a 400 listing every rejected field.
func ValidationErrorResponse(c *fiber.Ctx, message string, fields []types.FieldError) error {
	if fields == nil {
		fields = []types.FieldError{}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"status":    fiber.StatusBadRequest,
		"message":   message,
		"error":     message,
		"fields":    fields,
		"ok":        false,
		"timestamp": timestamp(),
		"url":       c.OriginalURL(),
		"type":      "validation",
	})
}

// VersionErrorResponse writes the optimistic lock conflict.
func VersionErrorResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"status":       fiber.StatusConflict,
		"message":      "E_VERSION - Refresh and reconcile with current version and retry.",
		"ok":           false,
		"versionError": true,
		"timestamp":    timestamp(),
		"url":          c.OriginalURL(),
		"type":         "version",
	})
}

// NotFoundResponse writes a 404 with message.
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": timestamp(),
		"url":       c.OriginalURL(),
		"type":      "not_found",
	})
}

// ErrorResponseStruct documents the error envelope for swagger
type ErrorResponseStruct struct {
	Status       int                `json:"status"`
	Message      string             `json:"message"`
	Ok           bool               `json:"ok"`
	Timestamp    string             `json:"timestamp"`
	URL          string             `json:"url"`
	Type         string             `json:"type,omitempty"`
	VersionError bool               `json:"versionError,omitempty"`
	Error        string             `json:"error,omitempty"`
	Fields       []types.FieldError `json:"fields,omitempty"`
}
