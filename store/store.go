package store

import (
	"context"
	"errors"
	"time"

	"game-tournament-system/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// LedgerView is the read view available inside an atomic wallet update. Its
// queries observe the same database transaction as the update, so checks made
// through it (cooldowns, pending holds) cannot race a concurrent writer.
type LedgerView interface {
	LastSuccessfulByKind(userID string, kind models.TransactionKind) (*models.Transaction, error)
	HasPendingWithdrawal(userID string) (bool, error)
}

// Mutation collects the records an atomic wallet update writes alongside the
// balance change. Everything in it is persisted in the same unit as the
// wallet row, or not at all.
type Mutation struct {
	Entries  []*models.Transaction
	Requests []*models.WithdrawalRequest
}

// WalletUpdateFn runs with the user's wallet row locked for update. It may
// mutate the wallet in place and return the records to append; an error
// aborts the whole unit and leaves the wallet untouched.
type WalletUpdateFn func(w *models.Wallet, view LedgerView) (*Mutation, error)

// WalletsUpdateFn is the multi-wallet variant. Wallets arrive sorted by
// ascending user id — the same order their row locks were taken in.
type WalletsUpdateFn func(wallets []*models.Wallet, view LedgerView) (*Mutation, error)

// LedgerStore persists wallets, ledger entries and withdrawal requests. All
// balance mutation goes through UpdateWallet/UpdateWallets so that the
// check-and-mutate happens under a row lock and the ledger entry lands in the
// same atomic unit as the balance it describes.
type LedgerStore interface {
	CreateWallet(ctx context.Context, w *models.Wallet) error
	WalletByUser(ctx context.Context, userID string) (*models.Wallet, error)
	WalletByID(ctx context.Context, id string) (*models.Wallet, error)

	UpdateWallet(ctx context.Context, userID string, fn WalletUpdateFn) (*Mutation, error)
	// UpdateWallets locks every listed wallet in ascending user-id order
	// (stable order prevents lock-order deadlocks), then runs fn once with
	// all of them. All-or-nothing: an error rolls every wallet back.
	UpdateWallets(ctx context.Context, userIDs []string, fn WalletsUpdateFn) (*Mutation, error)

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	SaveTransaction(ctx context.Context, t *models.Transaction) error
	TransactionByOrder(ctx context.Context, orderID, trackID string) (*models.Transaction, error)
	TransactionsByWallet(ctx context.Context, walletID string, limit int) ([]models.Transaction, error)
	PendingDeposits(ctx context.Context, olderThan time.Time) ([]models.Transaction, error)

	// SettleDeposit credits a wallet for a pending gateway deposit exactly
	// once: it re-locks the transaction row, re-checks it is still pending,
	// credits both balances and marks the row success with the settlement
	// reference, all in one atomic unit. The bool is false when the
	// transaction had already left pending — a safe duplicate call.
	SettleDeposit(ctx context.Context, orderID, trackID, refNumber string) (*models.Transaction, bool, error)

	WithdrawalRequestByID(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	WithdrawalRequestsByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
}

// TournamentStore persists tournaments, participation, matches and winner
// submissions, plus the user/team mirrors the sync worker maintains.
type TournamentStore interface {
	CreateTournament(ctx context.Context, t *models.Tournament) error
	SaveTournament(ctx context.Context, t *models.Tournament) error
	TournamentByID(ctx context.Context, id string) (*models.Tournament, error)
	TournamentBySlug(ctx context.Context, slug string) (*models.Tournament, error)
	Tournaments(ctx context.Context, status models.TournamentStatus) ([]models.Tournament, error)

	CreateParticipant(ctx context.Context, p *models.Participant) error
	Participants(ctx context.Context, tournamentID string) ([]models.Participant, error)
	ParticipantCount(ctx context.Context, tournamentID string) (int64, error)
	IsParticipant(ctx context.Context, tournamentID, userID string) (bool, error)

	AddTeam(ctx context.Context, tt *models.TournamentTeamEntry) error
	TeamIDs(ctx context.Context, tournamentID string) ([]string, error)
	TeamCount(ctx context.Context, tournamentID string) (int64, error)
	HasTeam(ctx context.Context, tournamentID, teamID string) (bool, error)

	// CreateRoundMatches inserts a round's matches only if the round does
	// not exist yet, in one atomic unit. Two workers advancing the same
	// round concurrently cannot both insert; the loser gets ErrDuplicate.
	CreateRoundMatches(ctx context.Context, tournamentID string, round int, matches []*models.Match) error
	SaveMatch(ctx context.Context, m *models.Match) error
	MatchByID(ctx context.Context, id string) (*models.Match, error)
	Matches(ctx context.Context, tournamentID string) ([]models.Match, error)
	MatchesByRound(ctx context.Context, tournamentID string, round int) ([]models.Match, error)
	MatchCount(ctx context.Context, tournamentID string) (int64, error)

	CreateReport(ctx context.Context, r *models.Report) error
	SaveReport(ctx context.Context, r *models.Report) error
	ReportByID(ctx context.Context, id string) (*models.Report, error)

	CreateSubmission(ctx context.Context, s *models.WinnerSubmission) error
	SaveSubmission(ctx context.Context, s *models.WinnerSubmission) error
	SubmissionByID(ctx context.Context, id string) (*models.WinnerSubmission, error)

	UserByID(ctx context.Context, id string) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error
	TeamByID(ctx context.Context, id string) (*models.Team, error)
	UpsertTeam(ctx context.Context, t *models.Team) error
	HasInGameID(ctx context.Context, userID, game string) (bool, error)
	UpsertInGameID(ctx context.Context, ig *models.InGameID) error
}
