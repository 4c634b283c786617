package rest

import (
	"errors"

	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/gofiber/fiber/v2"
)

func errorBody(code, message, field string) fiber.Map {
	body := fiber.Map{"error": code, "message": message}
	if field != "" {
		body["field"] = field
	}
	return body
}

// statusFor сопоставляет ошибку сервисного слоя со статусом HTTP
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case service.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrInvalidSlot):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	var (
		ve *service.ValidationError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		return c.Status(status).JSON(errorBody("validation_error", ve.Message, ve.Field))
	case errors.As(err, &fe):
		return c.Status(status).JSON(errorBody("http_error", fe.Message, ""))
	case status == fiber.StatusNotFound:
		return c.Status(status).JSON(errorBody("not_found", err.Error(), ""))
	case status == fiber.StatusConflict:
		return c.Status(status).JSON(errorBody("conflict", err.Error(), ""))
	case status == fiber.StatusUnprocessableEntity:
		return c.Status(status).JSON(errorBody("invalid_slot", err.Error(), ""))
	case status == fiber.StatusForbidden:
		return c.Status(status).JSON(errorBody("forbidden", err.Error(), ""))
	default:
		// Подробности только в логе
		return c.Status(status).JSON(errorBody("internal_error", "internal server error", ""))
	}
}
