package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	perrors "github.com/p-blackswan/tally/internal/errors"
)

const problemContentType = "application/problem+json"

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	err := c.Status(status).JSON(ProblemDetail{
		Success:  false,
		Error:    detail,
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
	c.Set(fiber.HeaderContentType, problemContentType)
	return err
}

// errorHandler renders errors returned by handlers.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	switch {
	case errors.Is(err, perrors.ErrUserNotFound):
		return problemResponse(c, fiber.StatusNotFound, "user_not_found", "Not Found", err.Error())
	case errors.Is(err, perrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, perrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest, "invalid_input", "Bad Request", err.Error())
	case errors.As(err, &fe):
		return problemResponse(c, fe.Code, "http_error", utils.StatusMessage(fe.Code), fe.Message)
	}

	s.logger.Error().Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("request failed")
	return problemResponse(c, fiber.StatusInternalServerError,
		"internal_error", "Internal Server Error", "internal server error")
}
