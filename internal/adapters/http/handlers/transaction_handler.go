package handlers

import (
	"context"

	"booklend/internal/adapters/http/middleware"
	"booklend/internal/core/domain"
	"booklend/internal/core/services"
	"booklend/internal/pkg/pagination"
	"booklend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// TransactionHandler handles lending transaction endpoints
type TransactionHandler struct {
	transactionService *services.TransactionService
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(transactionService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// caller returns the authenticated caller or ErrUnauthorized
func caller(c *fiber.Ctx) (domain.Caller, error) {
	who, ok := middleware.CallerFrom(c)
	if !ok {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return who, nil
}

// Create creates a new lending transaction
// @Summary Create transaction
// @Description Create a lending transaction. The caller must be the lender or the borrower.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateTransactionRequest true "Transaction data"
// @Success 201 {object} response.Response{data=TransactionResponse}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /transactions [post]
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	var req CreateTransactionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleError(c, err)
	}

	tx, err := h.transactionService.CreateTransaction(c.UserContext(), who, services.CreateTransactionInput{
		BookID:      req.BookID,
		LenderID:    req.LenderID,
		BorrowerID:  req.BorrowerID,
		RentalPrice: req.RentalPrice,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.Created(c, "Transaction created successfully", toTransactionResponse(tx))
}

// ListMine lists the caller's transactions
// @Summary List my transactions
// @Description Transactions where the caller is lender or borrower, newest first
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response{data=pagination.Response}
// @Failure 401 {object} response.Response
// @Router /transactions/my [get]
func (h *TransactionHandler) ListMine(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	params := pagination.GetParams(c)
	txs, total, err := h.transactionService.ListMine(c.UserContext(), who, params.Offset, params.Limit)
	if err != nil {
		return handleError(c, err)
	}

	items := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, toTransactionResponse(tx))
	}

	return response.Success(c, "", pagination.NewResponse(items, params, total))
}

// Get returns one transaction
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	tx, err := h.transactionService.GetTransaction(c.UserContext(), c.Params("id"), who)
	if err != nil {
		return handleError(c, err)
	}

	return response.Success(c, "", toTransactionResponse(tx))
}

// History returns the transition history of a transaction
// @Summary Transaction history
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=[]EventResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /transactions/{id}/history [get]
func (h *TransactionHandler) History(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	events, err := h.transactionService.History(c.UserContext(), c.Params("id"), who)
	if err != nil {
		return handleError(c, err)
	}

	return response.Success(c, "", toEventResponses(events))
}

type transitionFunc func(ctx context.Context, id string, caller domain.Caller) (*domain.Transaction, error)

// transition runs a party operation on the transaction in the path
func (h *TransactionHandler) transition(fn transitionFunc, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, err := caller(c)
		if err != nil {
			return handleError(c, err)
		}

		tx, err := fn(c.UserContext(), c.Params("id"), who)
		if err != nil {
			return handleError(c, err)
		}

		return response.Success(c, message, toTransactionResponse(tx))
	}
}

// Propose moves a pending transaction to negotiating
// @Summary Propose terms
// @Description Lender proposes the rental terms
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/propose [post]
func (h *TransactionHandler) Propose(c *fiber.Ctx) error {
	return h.transition(h.transactionService.ProposeTerms, "Terms proposed")(c)
}

// Accept moves a negotiating transaction to payment_pending
// @Summary Accept terms
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/accept [post]
func (h *TransactionHandler) Accept(c *fiber.Ctx) error {
	return h.transition(h.transactionService.AcceptTerms, "Terms accepted")(c)
}

// Deliver marks the book as delivered by the lender
// @Summary Mark delivered
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/deliver [post]
func (h *TransactionHandler) Deliver(c *fiber.Ctx) error {
	return h.transition(h.transactionService.MarkDelivered, "Book marked as delivered")(c)
}

// Receive marks the book as received by the borrower
// @Summary Mark received
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/receive [post]
func (h *TransactionHandler) Receive(c *fiber.Ctx) error {
	return h.transition(h.transactionService.MarkReceived, "Book marked as received")(c)
}

// Confirm records the caller's confirmation; the second confirmation completes
// the transaction
// @Summary Confirm rental
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/confirm [post]
func (h *TransactionHandler) Confirm(c *fiber.Ctx) error {
	return h.transition(h.transactionService.Confirm, "Confirmation recorded")(c)
}

// Cancel cancels a transaction before payment is held
// @Summary Cancel transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.Response{data=TransactionResponse}
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/cancel [post]
func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(h.transactionService.Cancel, "Transaction cancelled")(c)
}

// OpenDispute opens a complaint against the counterparty
// @Summary Open dispute
// @Tags Disputes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Param body body OpenDisputeRequest true "Dispute"
// @Success 201 {object} response.Response{data=ComplaintResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /transactions/{id}/disputes [post]
func (h *TransactionHandler) OpenDispute(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return handleError(c, err)
	}

	var req OpenDisputeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleError(c, err)
	}

	complaint, err := h.transactionService.OpenDispute(c.UserContext(), c.Params("id"), who, services.OpenDisputeInput{
		AgainstID: req.AgainstID,
		Reason:    req.Reason,
	})
	if err != nil {
		return handleError(c, err)
	}

	return response.Created(c, "Dispute opened", toComplaintResponse(complaint))
}
