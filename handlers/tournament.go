package handlers

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"game-tournament-system/middleware"
	"game-tournament-system/models"
	"game-tournament-system/services"
	"game-tournament-system/utils"
)

type TournamentHandler struct {
	Tournaments *services.TournamentService
	Uploader    utils.Uploader
}

func SetupTournamentRoutes(app *fiber.App, h *TournamentHandler) {
	app.Get("/tournaments", h.ListTournaments)
	app.Get("/tournaments/:slug", h.GetTournament)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/tournaments/:id/join", h.Join)
	secured.Get("/tournaments/:id/matches", h.ListMatches)
	secured.Post("/matches/:id/confirm", h.ConfirmResult)
	secured.Post("/matches/:id/dispute", h.Dispute)
	secured.Post("/tournaments/:id/submissions", h.CreateSubmission)
	secured.Post("/tournaments/:id/reports", h.CreateReport)
	secured.Post("/uploads/evidence", h.UploadEvidence)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/tournaments", h.Create)
	admin.Patch("/tournaments/:id/status", h.SetStatus)
	admin.Post("/tournaments/:id/matches/generate", h.GenerateMatches)
	admin.Post("/matches/:id/room", h.SetRoom)
	admin.Post("/submissions/:id/approve", h.ApproveSubmission)
	admin.Post("/submissions/:id/reject", h.RejectSubmission)
	admin.Post("/reports/:id/resolve", h.ResolveReport)
	admin.Post("/reports/:id/reject", h.RejectReport)
	admin.Post("/tournaments/:id/scores/distribute", h.DistributeScores)
}

func (h *TournamentHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name                      string          `json:"name"`
		Description               string          `json:"description"`
		Rules                     string          `json:"rules"`
		Game                      string          `json:"game"`
		Type                      string          `json:"type"`
		MaxParticipants           int             `json:"max_participants"`
		TeamSize                  int             `json:"team_size"`
		TokenBased                bool            `json:"token_based"`
		EntryFee                  decimal.Decimal `json:"entry_fee"`
		PrizePool                 decimal.Decimal `json:"prize_pool"`
		WinnerSlots               int             `json:"winner_slots"`
		RegistrationStart         *time.Time      `json:"registration_start"`
		RegistrationEnd           *time.Time      `json:"registration_end"`
		StartTime                 time.Time       `json:"start_time"`
		EndTime                   time.Time       `json:"end_time"`
		RequiredVerificationLevel int             `json:"required_verification_level"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	t, err := h.Tournaments.CreateTournament(c.Context(), services.CreateTournamentInput{
		Name:                      req.Name,
		Description:               req.Description,
		Rules:                     req.Rules,
		Game:                      req.Game,
		Type:                      models.TournamentType(req.Type),
		MaxParticipants:           req.MaxParticipants,
		TeamSize:                  req.TeamSize,
		TokenBased:                req.TokenBased,
		EntryFee:                  req.EntryFee,
		PrizePool:                 req.PrizePool,
		WinnerSlots:               req.WinnerSlots,
		RegistrationStart:         req.RegistrationStart,
		RegistrationEnd:           req.RegistrationEnd,
		StartTime:                 req.StartTime,
		EndTime:                   req.EndTime,
		RequiredVerificationLevel: req.RequiredVerificationLevel,
		CreatorID:                 middleware.UserID(c),
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(201).JSON(t)
}

func (h *TournamentHandler) ListTournaments(c *fiber.Ctx) error {
	status := models.TournamentStatus(c.Query("status"))
	list, err := h.Tournaments.Tournaments(c.Context(), status)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(list)
}

func (h *TournamentHandler) GetTournament(c *fiber.Ctx) error {
	t, err := h.Tournaments.TournamentBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(t)
}

func (h *TournamentHandler) SetStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	t, err := h.Tournaments.SetStatus(c.Context(), c.Params("id"), models.TournamentStatus(req.Status))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(t)
}

func (h *TournamentHandler) Join(c *fiber.Ctx) error {
	var req struct {
		TeamID string `json:"team_id"`
	}
	// Body is optional for individual joins.
	_ = c.BodyParser(&req)

	if err := h.Tournaments.JoinTournament(c.Context(), c.Params("id"), middleware.UserID(c), req.TeamID); err != nil {
		return respondErr(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "joined"})
}

func (h *TournamentHandler) GenerateMatches(c *fiber.Ctx) error {
	matches, err := h.Tournaments.GenerateMatches(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(matches)
}

func (h *TournamentHandler) ListMatches(c *fiber.Ctx) error {
	matches, err := h.Tournaments.Matches(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(matches)
}

func (h *TournamentHandler) ConfirmResult(c *fiber.Ctx) error {
	var req struct {
		WinnerID string `json:"winner_id"`
		ProofURL string `json:"proof_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	m, err := h.Tournaments.ConfirmMatchResult(c.Context(), c.Params("id"), req.WinnerID, middleware.UserID(c), req.ProofURL)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(m)
}

func (h *TournamentHandler) Dispute(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	m, err := h.Tournaments.DisputeMatch(c.Context(), c.Params("id"), middleware.UserID(c), req.Reason)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(m)
}

func (h *TournamentHandler) SetRoom(c *fiber.Ctx) error {
	var req struct {
		RoomID   string `json:"room_id"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	m, err := h.Tournaments.SetMatchRoom(c.Context(), c.Params("id"), req.RoomID, req.Password)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(m)
}

func (h *TournamentHandler) CreateSubmission(c *fiber.Ctx) error {
	var req struct {
		EvidenceURL string `json:"evidence_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	sub, err := h.Tournaments.CreateWinnerSubmission(c.Context(), c.Params("id"), middleware.UserID(c), req.EvidenceURL)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(201).JSON(sub)
}

func (h *TournamentHandler) ApproveSubmission(c *fiber.Ctx) error {
	sub, err := h.Tournaments.ApproveWinnerSubmission(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(sub)
}

func (h *TournamentHandler) RejectSubmission(c *fiber.Ctx) error {
	sub, err := h.Tournaments.RejectWinnerSubmission(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(sub)
}

func (h *TournamentHandler) CreateReport(c *fiber.Ctx) error {
	var req struct {
		ReportedUserID string  `json:"reported_user_id"`
		MatchID        *string `json:"match_id"`
		Description    string  `json:"description"`
		EvidenceURL    string  `json:"evidence_url"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	r, err := h.Tournaments.CreateReport(c.Context(), c.Params("id"), middleware.UserID(c), req.ReportedUserID, req.MatchID, req.Description, req.EvidenceURL)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(201).JSON(r)
}

func (h *TournamentHandler) ResolveReport(c *fiber.Ctx) error {
	var req struct {
		BanUser bool `json:"ban_user"`
	}
	_ = c.BodyParser(&req)
	r, err := h.Tournaments.ResolveReport(c.Context(), c.Params("id"), req.BanUser)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(r)
}

func (h *TournamentHandler) RejectReport(c *fiber.Ctx) error {
	r, err := h.Tournaments.RejectReport(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(r)
}

func (h *TournamentHandler) DistributeScores(c *fiber.Ctx) error {
	var req struct {
		Distribution []int `json:"distribution"`
	}
	_ = c.BodyParser(&req)
	if err := h.Tournaments.DistributeScores(c.Context(), c.Params("id"), req.Distribution); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(204)
}

// UploadEvidence stores a proof screenshot or recording and returns its URL.
// Clients pass the URL back when confirming a match result or submitting a
// winner claim.
func (h *TournamentHandler) UploadEvidence(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "file is required"})
	}
	if fh.Size > 20<<20 {
		return c.Status(400).JSON(fiber.Map{"error": "file exceeds 20MB limit"})
	}

	file, contentType, err := utils.OpenMultipart(fh)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "could not read file"})
	}
	defer file.Close()

	key := fmt.Sprintf("evidence/%s/%s%s", middleware.UserID(c), uuid.NewString(), filepath.Ext(fh.Filename))
	url, err := h.Uploader.Upload(c.Context(), key, contentType, file, fh.Size)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"url": url})
}
