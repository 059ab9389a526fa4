package handlers

import (
	"booklend/internal/core/services"
	"booklend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PaymentHandler receives callbacks from the payment service
type PaymentHandler struct {
	transactionService *services.TransactionService
	log                *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(transactionService *services.TransactionService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{transactionService: transactionService, log: log}
}

// Callback confirms that payment for a transaction is held in escrow
// @Summary Payment callback
// @Description Called by the payment service once the borrower's payment is held
// @Tags Payments
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body PaymentCallbackRequest true "Payment"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /payments/callback [post]
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var req PaymentCallbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleError(c, err)
	}

	tx, err := h.transactionService.ConfirmPayment(c.UserContext(), req.TransactionID)
	if err != nil {
		h.log.Warn("payment callback rejected",
			zap.String("transaction_id", req.TransactionID),
			zap.String("reference", req.Reference),
			zap.Error(err),
		)
		return handleError(c, err)
	}

	h.log.Info("payment confirmed",
		zap.String("transaction_id", tx.ID),
		zap.String("reference", req.Reference),
	)
	return response.Success(c, "Payment confirmed", toTransactionResponse(tx))
}
