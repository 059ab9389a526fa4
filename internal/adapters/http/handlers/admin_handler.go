package handlers

import (
	"booklend/internal/core/domain"
	"booklend/internal/core/services"
	"booklend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles arbiter administration endpoints
type AdminHandler struct {
	commissionService *services.CommissionService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(commissionService *services.CommissionService) *AdminHandler {
	return &AdminHandler{commissionService: commissionService}
}

func toPolicyResponse(p domain.CommissionPolicy) CommissionPolicyResponse {
	return CommissionPolicyResponse{Rate: p.Rate, Floor: p.Floor, Ceiling: p.Ceiling}
}

// GetCommissionPolicy returns the commission policy in force
// @Summary Get commission policy
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=CommissionPolicyResponse}
// @Failure 403 {object} response.Response
// @Router /admin/commission-policy [get]
func (h *AdminHandler) GetCommissionPolicy(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	policy, err := h.commissionService.GetPolicy(who)
	if err != nil {
		return handleError(c, err)
	}

	return response.Success(c, "", toPolicyResponse(policy))
}

// SetCommissionPolicy replaces the commission policy for new transactions
// @Summary Replace commission policy
// @Description Existing transactions keep the commission they were created with
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CommissionPolicyRequest true "Policy"
// @Success 200 {object} response.Response{data=CommissionPolicyResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/commission-policy [put]
func (h *AdminHandler) SetCommissionPolicy(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	var req CommissionPolicyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleError(c, err)
	}

	policy, err := h.commissionService.SetPolicy(who, domain.CommissionPolicy{
		Rate:    req.Rate,
		Floor:   req.Floor,
		Ceiling: req.Ceiling,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.Success(c, "Commission policy updated", toPolicyResponse(policy))
}
