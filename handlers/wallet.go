package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"game-tournament-system/middleware"
	"game-tournament-system/models"
	"game-tournament-system/services"
)

type WalletHandler struct {
	Wallet *services.WalletService

	// Where the browser lands after a gateway round trip.
	SuccessRedirectURL string
	FailureRedirectURL string
}

func SetupWalletRoutes(app *fiber.App, h *WalletHandler) {
	// The gateway redirects the user's browser here; no auth context.
	app.Get("/wallet/deposits/verify", h.VerifyDeposit)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/wallet", h.GetWallet)
	secured.Get("/wallet/transactions", h.GetTransactions)
	secured.Post("/wallet/deposits", h.CreateDeposit)
	secured.Post("/wallet/withdrawals", h.CreateWithdrawalRequest)
	secured.Get("/wallet/withdrawals", h.GetWithdrawalRequests)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/withdrawals/:id/approve", h.ApproveWithdrawal)
	admin.Post("/withdrawals/:id/reject", h.RejectWithdrawal)
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	w, err := h.Wallet.Wallet(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(w)
}

func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	txns, err := h.Wallet.RecentTransactions(c.Context(), middleware.UserID(c), limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(txns)
}

func (h *WalletHandler) CreateDeposit(c *fiber.Ctx) error {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	url, tx, err := h.Wallet.CreateDeposit(c.Context(), middleware.UserID(c), req.Amount)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"payment_url": url,
		"order_id":    tx.OrderID,
		"track_id":    tx.TrackID,
	})
}

// VerifyDeposit handles the gateway's return redirect. Idempotent: replays
// and webhook races settle to the same outcome. The user always ends up on a
// result page, never a JSON error.
func (h *WalletHandler) VerifyDeposit(c *fiber.Ctx) error {
	orderID := c.Query("orderId")
	trackID := c.Query("trackId")
	if orderID == "" || trackID == "" {
		return c.Redirect(h.FailureRedirectURL, fiber.StatusFound)
	}
	tx, err := h.Wallet.VerifyAndProcessDeposit(c.Context(), orderID, trackID)
	if err != nil || tx.Status != models.TxSuccess {
		return c.Redirect(h.FailureRedirectURL, fiber.StatusFound)
	}
	return c.Redirect(h.SuccessRedirectURL, fiber.StatusFound)
}

func (h *WalletHandler) CreateWithdrawalRequest(c *fiber.Ctx) error {
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		CardNumber  string          `json:"card_number"`
		ShebaNumber string          `json:"sheba_number"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	wr, err := h.Wallet.CreateWithdrawalRequest(c.Context(), middleware.UserID(c), req.Amount, req.CardNumber, req.ShebaNumber)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(201).JSON(wr)
}

func (h *WalletHandler) GetWithdrawalRequests(c *fiber.Ctx) error {
	list, err := h.Wallet.WithdrawalRequests(c.Context(), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(list)
}

func (h *WalletHandler) ApproveWithdrawal(c *fiber.Ctx) error {
	wr, err := h.Wallet.ApproveWithdrawalRequest(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(wr)
}

func (h *WalletHandler) RejectWithdrawal(c *fiber.Ctx) error {
	wr, err := h.Wallet.RejectWithdrawalRequest(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(wr)
}

// respondErr maps service errors to stable HTTP statuses. Unexpected errors
// become a generic 500 so internals never leak to clients.
func respondErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPermissionDenied),
		errors.Is(err, services.ErrNotCaptain),
		errors.Is(err, services.ErrNotMatchSide),
		errors.Is(err, services.ErrBanned):
		return c.Status(403).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrBelowMinimum),
		errors.Is(err, services.ErrRateLimited),
		errors.Is(err, services.ErrPendingWithdrawal),
		errors.Is(err, services.ErrMissingBankInfo),
		errors.Is(err, services.ErrRegistrationClosed),
		errors.Is(err, services.ErrTournamentFull),
		errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrVerificationLevel),
		errors.Is(err, services.ErrScoreTooLow),
		errors.Is(err, services.ErrMissingInGameID),
		errors.Is(err, services.ErrTeamSize),
		errors.Is(err, services.ErrWrongTournament),
		errors.Is(err, services.ErrMatchesExist),
		errors.Is(err, services.ErrTooFewEntrants),
		errors.Is(err, services.ErrMatchConfirmed),
		errors.Is(err, services.ErrNotWinner),
		errors.Is(err, services.ErrAlreadyReviewed),
		errors.Is(err, services.ErrGatewayRejected):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(500).JSON(fiber.Map{"error": "internal error"})
	}
}
