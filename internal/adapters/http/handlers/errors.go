package handlers

import (
	"errors"

	"booklend/internal/core/domain"
	"booklend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// handleError maps engine errors onto HTTP responses. Internal details of
// inconsistent-state and collaborator failures are not exposed.
func handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return response.Unauthorized(c, "Unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		return response.Forbidden(c, "You don't have permission to access this resource")
	case errors.Is(err, domain.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return response.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyResolved):
		return response.Conflict(c, "Complaint already resolved")
	case errors.Is(err, domain.ErrCollaboratorUnavailable):
		return response.ServiceUnavailable(c, "Service temporarily unavailable, please retry")
	case errors.Is(err, domain.ErrInconsistentState):
		return response.InternalServerError(c, "Inconsistent state, an operator has been alerted")
	default:
		return response.InternalServerError(c, "Internal Server Error")
	}
}
