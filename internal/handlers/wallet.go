package handlers

import (
	"errors"

	apperrors "walletledger/internal/errors"
	"walletledger/internal/models"
	"walletledger/internal/services/wallet"
	"walletledger/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type WalletHandler struct {
	walletService wallet.Service
	validator     *utils.Validator
	logger        *zap.Logger
}

func NewWalletHandler(walletService wallet.Service, logger *zap.Logger) *WalletHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletHandler{
		walletService: walletService,
		validator:     utils.NewValidator(),
		logger:        logger.Named("http"),
	}
}

type createWalletRequest struct {
	Currency string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type depositRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type withdrawRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Destination string `json:"destination" validate:"required"`
}

type transferRequest struct {
	ToUserID uint  `json:"to_user_id" validate:"required"`
	Amount   int64 `json:"amount" validate:"required,gt=0"`
}

// walletView is the public representation of a wallet.
type walletView struct {
	ID             uint   `json:"id"`
	UserID         uint   `json:"user_id"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
	Currency       string `json:"currency"`
}

func newWalletView(w *models.Wallet) walletView {
	return walletView{
		ID:             w.ID,
		UserID:         w.UserID,
		Balance:        w.Balance,
		BalanceDisplay: models.FormatMinor(w.Balance, w.Currency),
		Currency:       w.Currency,
	}
}

type transactionView struct {
	models.Transaction
	AmountDisplay string `json:"amount_display"`
}

func newTransactionView(t *models.Transaction) transactionView {
	return transactionView{
		Transaction:   *t,
		AmountDisplay: models.FormatMinor(t.Amount, t.Currency),
	}
}

func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input createWalletRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.BadRequest(c, "Invalid request format")
		}
	}
	if err := h.validator.Validate(input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	w, err := h.walletService.CreateWallet(c.UserContext(), userID, input.Currency)
	if err != nil {
		return h.respondError(c, err, nil)
	}

	return utils.Created(c, fiber.Map{
		"wallet": newWalletView(w),
	})
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.GetWallet(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err, nil)
	}

	return utils.Success(c, fiber.Map{
		"wallet": newWalletView(w),
	})
}

func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	w, err := h.walletService.GetWallet(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err, nil)
	}
	balance, err := h.walletService.GetBalance(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err, nil)
	}

	return utils.Success(c, fiber.Map{
		"balance":         balance,
		"balance_display": models.FormatMinor(balance, w.Currency),
		"currency":        w.Currency,
	})
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input depositRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := h.validator.Validate(input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	balance, txn, err := h.walletService.Deposit(c.UserContext(), userID, input.Amount, input.PaymentMethod)
	if err != nil {
		return h.respondError(c, err, txn)
	}

	return h.respondMovement(c, txn, fiber.Map{"balance": balance})
}

func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input withdrawRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := h.validator.Validate(input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	balance, txn, err := h.walletService.Withdraw(c.UserContext(), userID, input.Amount, input.Destination)
	if err != nil {
		return h.respondError(c, err, txn)
	}

	return h.respondMovement(c, txn, fiber.Map{"balance": balance})
}

func (h *WalletHandler) Transfer(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input transferRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if err := h.validator.Validate(input); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	// The recipient's balance is not disclosed to the sender.
	fromBalance, _, txn, err := h.walletService.Transfer(c.UserContext(), userID, input.ToUserID, input.Amount)
	if err != nil {
		return h.respondError(c, err, txn)
	}

	return h.respondMovement(c, txn, fiber.Map{"balance": fromBalance})
}

func (h *WalletHandler) GetTransactionHistory(c *fiber.Ctx) error {
	userID, err := utils.CallerID(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	page := utils.GetPagination(c, defaultHistoryLimit, maxHistoryLimit)
	txns, err := h.walletService.GetTransactionHistory(c.UserContext(), userID, wallet.HistoryOptions{
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return h.respondError(c, err, nil)
	}

	views := make([]transactionView, 0, len(txns))
	for i := range txns {
		views = append(views, newTransactionView(&txns[i]))
	}
	return utils.Success(c, utils.NewPaginatedResponse(views, page))
}

// respondMovement answers 202 while the processor has not settled the
// transaction and 200 otherwise.
func (h *WalletHandler) respondMovement(c *fiber.Ctx, txn *models.Transaction, body fiber.Map) error {
	body["transaction"] = newTransactionView(txn)
	if balance, ok := body["balance"].(int64); ok {
		body["balance_display"] = models.FormatMinor(balance, txn.Currency)
	}
	if txn.Status == models.TransactionStatusPending {
		return utils.Accepted(c, body)
	}
	return utils.Success(c, body)
}

func (h *WalletHandler) respondError(c *fiber.Ctx, err error, txn *models.Transaction) error {
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		h.logger.Error("unhandled wallet error",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return utils.InternalError(c, "internal error")
	}

	if apperrors.HTTPStatus(domainErr.Code) >= fiber.StatusInternalServerError {
		h.logger.Warn("wallet operation failed",
			zap.String("path", c.Path()),
			zap.String("code", domainErr.Code),
			zap.Error(err),
		)
	}

	var extra fiber.Map
	if txn != nil {
		extra = fiber.Map{"transaction_id": txn.ID, "status": txn.Status}
	}
	return utils.DomainError(c, domainErr, extra)
}
