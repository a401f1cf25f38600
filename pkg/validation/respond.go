package validation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/caseflow/pkg/models"
)

// Respond writes a Laravel-style 400 response.
func Respond(c *fiber.Ctx, errs map[string][]string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ValidationErrorResponse{
		Message: "Validation failed",
		Errors:  errs,
	})
}
