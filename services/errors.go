package services

import "errors"

// Typed errors so handlers can map outcomes to HTTP statuses without string
// matching. Store-level sentinels are wrapped into these at the service layer.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrBelowMinimum      = errors.New("amount below withdrawal minimum")
	ErrRateLimited       = errors.New("withdrawal cooldown active")
	ErrPendingWithdrawal = errors.New("a withdrawal request is already pending")
	ErrMissingBankInfo   = errors.New("card or sheba number required")

	ErrRegistrationClosed = errors.New("registration window is closed")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrAlreadyJoined      = errors.New("already joined this tournament")
	ErrVerificationLevel  = errors.New("verification level too low")
	ErrScoreTooLow        = errors.New("score below tournament requirement")
	ErrMissingInGameID    = errors.New("in-game id required for this game")
	ErrBanned             = errors.New("user is banned")
	ErrNotCaptain         = errors.New("only the team captain may register the team")
	ErrTeamSize           = errors.New("team roster does not match required size")
	ErrWrongTournament    = errors.New("operation does not apply to this tournament type")

	ErrMatchesExist     = errors.New("matches already generated")
	ErrTooFewEntrants   = errors.New("need at least two entrants")
	ErrMatchConfirmed   = errors.New("match result already confirmed")
	ErrNotMatchSide     = errors.New("user is not a side of this match")
	ErrNotWinner        = errors.New("user is not a winner of this tournament")
	ErrAlreadyReviewed  = errors.New("submission already reviewed")
	ErrPermissionDenied = errors.New("permission denied")

	ErrGatewayRejected = errors.New("payment gateway rejected the request")
)
