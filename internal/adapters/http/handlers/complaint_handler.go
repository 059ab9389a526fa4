package handlers

import (
	"booklend/internal/core/domain"
	"booklend/internal/core/services"
	"booklend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ComplaintHandler handles complaint endpoints
type ComplaintHandler struct {
	transactionService *services.TransactionService
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(transactionService *services.TransactionService) *ComplaintHandler {
	return &ComplaintHandler{transactionService: transactionService}
}

// Get returns one complaint
// @Summary Get complaint
// @Description Visible to the parties of the transaction and to arbiters
// @Tags Disputes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Response{data=ComplaintResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	complaint, err := h.transactionService.GetComplaint(c.UserContext(), c.Params("id"), who)
	if err != nil {
		return handleError(c, err)
	}

	return response.Success(c, "", toComplaintResponse(complaint))
}

// Resolve records the arbiter's decision and closes the transaction
// @Summary Resolve dispute
// @Description Arbiter only. The transaction ends in the status mapped to the outcome.
// @Tags Disputes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param body body ResolveDisputeRequest true "Decision"
// @Success 200 {object} response.Response{data=ComplaintResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /complaints/{id}/resolve [post]
func (h *ComplaintHandler) Resolve(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	var req ResolveDisputeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.transactionService.ResolveDispute(c.UserContext(), c.Params("id"), who, services.ResolveDisputeInput{
		Outcome:    domain.ComplaintStatus(req.Outcome),
		Resolution: req.Resolution,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.Success(c, "Dispute "+string(complaint.Status), toComplaintResponse(complaint))
}
