package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"game-tournament-system/models"
	"game-tournament-system/store"
)

// TournamentService owns join orchestration, bracket generation, match
// confirmation and prize/refund issuance. All money movement goes through
// WalletService so the ledger stays the single source of truth.
type TournamentService struct {
	Store    store.TournamentStore
	Wallet   *WalletService
	Notifier Notifier
}

func NewTournamentService(st store.TournamentStore, wallet *WalletService, notifier Notifier) *TournamentService {
	return &TournamentService{Store: st, Wallet: wallet, Notifier: notifier}
}

// CreateTournamentInput carries the creator-supplied fields. The slug is
// derived from the name.
type CreateTournamentInput struct {
	Name                      string
	Description               string
	Rules                     string
	Game                      string
	Type                      models.TournamentType
	MaxParticipants           int
	TeamSize                  int
	TokenBased                bool
	EntryFee                  decimal.Decimal
	PrizePool                 decimal.Decimal
	WinnerSlots               int
	RegistrationStart         *time.Time
	RegistrationEnd           *time.Time
	StartTime                 time.Time
	EndTime                   time.Time
	RequiredVerificationLevel int
	CreatorID                 string
}

func (s *TournamentService) CreateTournament(ctx context.Context, in CreateTournamentInput) (*models.Tournament, error) {
	if in.Name == "" || in.Game == "" {
		return nil, fmt.Errorf("%w: name and game are required", ErrInvalidInput)
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	if in.EntryFee.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if in.Type == "" {
		in.Type = models.TournamentIndividual
	}
	if in.Type == models.TournamentTeam && in.TeamSize < 2 {
		return nil, fmt.Errorf("%w: team tournaments need a team size of at least 2", ErrInvalidInput)
	}
	if in.WinnerSlots <= 0 {
		in.WinnerSlots = 3
	}
	if in.RequiredVerificationLevel <= 0 {
		in.RequiredVerificationLevel = 1
	}

	t := &models.Tournament{
		ID:                        uuid.NewString(),
		Slug:                      slug.Make(in.Name),
		Name:                      in.Name,
		Description:               in.Description,
		Rules:                     in.Rules,
		Game:                      in.Game,
		Type:                      in.Type,
		Status:                    models.TournamentDraft,
		MaxParticipants:           in.MaxParticipants,
		TeamSize:                  in.TeamSize,
		IsFree:                    in.EntryFee.IsZero(),
		TokenBased:                in.TokenBased,
		EntryFee:                  in.EntryFee,
		PrizePool:                 in.PrizePool,
		WinnerSlots:               in.WinnerSlots,
		RegistrationStart:         in.RegistrationStart,
		RegistrationEnd:           in.RegistrationEnd,
		StartTime:                 in.StartTime,
		EndTime:                   in.EndTime,
		RequiredVerificationLevel: in.RequiredVerificationLevel,
		CreatorID:                 in.CreatorID,
	}

	err := s.Store.CreateTournament(ctx, t)
	if errors.Is(err, store.ErrDuplicate) {
		// Same name used before; disambiguate the slug and retry once.
		t.Slug = t.Slug + "-" + t.ID[:8]
		err = s.Store.CreateTournament(ctx, t)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TournamentService) Tournaments(ctx context.Context, status models.TournamentStatus) ([]models.Tournament, error) {
	list, err := s.Store.Tournaments(ctx, status)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].ParticipantCount = s.entrantCount(ctx, &list[i])
	}
	return list, nil
}

func (s *TournamentService) TournamentBySlug(ctx context.Context, slugOrID string) (*models.Tournament, error) {
	t, err := s.Store.TournamentBySlug(ctx, slugOrID)
	if errors.Is(err, store.ErrNotFound) {
		t, err = s.Store.TournamentByID(ctx, slugOrID)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.ParticipantCount = s.entrantCount(ctx, t)
	return t, nil
}

func (s *TournamentService) entrantCount(ctx context.Context, t *models.Tournament) int64 {
	var n int64
	if t.Type == models.TournamentTeam {
		n, _ = s.Store.TeamCount(ctx, t.ID)
	} else {
		n, _ = s.Store.ParticipantCount(ctx, t.ID)
	}
	return n
}

// SetStatus moves the tournament to the given status. Used by admin endpoints
// and the schedule worker.
func (s *TournamentService) SetStatus(ctx context.Context, tournamentID string, status models.TournamentStatus) (*models.Tournament, error) {
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = status
	if err := s.Store.SaveTournament(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// registrationOpen checks both the explicit status and the optional window.
func registrationOpen(t *models.Tournament, now time.Time) bool {
	if t.Status != models.TournamentRegistering {
		return false
	}
	if t.RegistrationStart != nil && now.Before(*t.RegistrationStart) {
		return false
	}
	if t.RegistrationEnd != nil && now.After(*t.RegistrationEnd) {
		return false
	}
	return true
}

// checkEligibility enforces the verification gates shared by individual and
// team joins. High-score accounts must be verified deeper: score 1000 needs
// level 2, score 2000 needs level 3.
func (s *TournamentService) checkEligibility(ctx context.Context, t *models.Tournament, userID string) error {
	u, err := s.Store.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if u.IsBanned {
		return ErrBanned
	}
	required := t.RequiredVerificationLevel
	switch {
	case u.Score >= 2000 && required < 3:
		required = 3
	case u.Score >= 1000 && required < 2:
		required = 2
	}
	if u.VerificationLevel < required {
		if required > t.RequiredVerificationLevel {
			return ErrScoreTooLow
		}
		return ErrVerificationLevel
	}
	hasID, err := s.Store.HasInGameID(ctx, userID, t.Game)
	if err != nil {
		return err
	}
	if !hasID {
		return ErrMissingInGameID
	}
	return nil
}

// JoinTournament registers a user (individual) or a team (team tournament,
// captain only). The entry-fee charge and the join record are one logical
// unit: a failed charge aborts the join, and a join-record failure after a
// successful charge is compensated with a refund.
func (s *TournamentService) JoinTournament(ctx context.Context, tournamentID, userID, teamID string) error {
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !registrationOpen(t, time.Now()) {
		return ErrRegistrationClosed
	}

	if t.Type == models.TournamentTeam {
		if teamID == "" {
			return ErrWrongTournament
		}
		return s.joinTeam(ctx, t, userID, teamID)
	}
	if teamID != "" {
		return ErrWrongTournament
	}
	return s.joinIndividual(ctx, t, userID)
}

func (s *TournamentService) joinIndividual(ctx context.Context, t *models.Tournament, userID string) error {
	if err := s.checkEligibility(ctx, t, userID); err != nil {
		return err
	}
	joined, err := s.Store.IsParticipant(ctx, t.ID, userID)
	if err != nil {
		return err
	}
	if joined {
		return ErrAlreadyJoined
	}
	count, err := s.Store.ParticipantCount(ctx, t.ID)
	if err != nil {
		return err
	}
	if t.MaxParticipants > 0 && count >= int64(t.MaxParticipants) {
		return ErrTournamentFull
	}

	charged := false
	if !t.IsFree {
		if err := s.chargeEntry(ctx, userID, t); err != nil {
			return err
		}
		charged = true
	}

	p := &models.Participant{
		ID:           uuid.NewString(),
		UserID:       userID,
		TournamentID: t.ID,
		Status:       models.ParticipantRegistered,
	}
	if err := s.Store.CreateParticipant(ctx, p); err != nil {
		if charged {
			s.refundEntry(ctx, userID, t)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAlreadyJoined
		}
		return err
	}
	s.notifyUser(ctx, userID, "tournament", "joined "+t.Name)
	return nil
}

func (s *TournamentService) joinTeam(ctx context.Context, t *models.Tournament, userID, teamID string) error {
	team, err := s.Store.TeamByID(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if team.CaptainID != userID {
		return ErrNotCaptain
	}
	members := team.MemberIDs()
	if len(members) != t.TeamSize {
		return ErrTeamSize
	}

	already, err := s.Store.HasTeam(ctx, t.ID, teamID)
	if err != nil {
		return err
	}
	if already {
		return ErrAlreadyJoined
	}
	count, err := s.Store.TeamCount(ctx, t.ID)
	if err != nil {
		return err
	}
	if t.MaxParticipants > 0 && count >= int64(t.MaxParticipants) {
		return ErrTournamentFull
	}

	for _, memberID := range members {
		if err := s.checkEligibility(ctx, t, memberID); err != nil {
			return fmt.Errorf("member %s: %w", memberID, err)
		}
		joined, err := s.Store.IsParticipant(ctx, t.ID, memberID)
		if err != nil {
			return err
		}
		if joined {
			return fmt.Errorf("member %s: %w", memberID, ErrAlreadyJoined)
		}
	}

	// Every member is charged in one atomic unit; a single short wallet
	// aborts the whole charge before any debit lands.
	charged := false
	if !t.IsFree {
		desc := "entry fee: " + t.Name
		if err := s.Wallet.ChargeGroupEntryFee(ctx, members, t.EntryFee, t.TokenBased, desc); err != nil {
			return err
		}
		charged = true
	}

	if err := s.Store.AddTeam(ctx, &models.TournamentTeamEntry{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		TeamID:       teamID,
	}); err != nil {
		if charged {
			for _, memberID := range members {
				s.refundEntry(ctx, memberID, t)
			}
		}
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAlreadyJoined
		}
		return err
	}
	for _, memberID := range members {
		if err := s.Store.CreateParticipant(ctx, &models.Participant{
			ID:           uuid.NewString(),
			UserID:       memberID,
			TournamentID: t.ID,
			Status:       models.ParticipantRegistered,
		}); err != nil && !errors.Is(err, store.ErrDuplicate) {
			log.Printf("failed to record participant %s for team %s in %s: %v", memberID, teamID, t.ID, err)
		}
	}
	s.notifyUser(ctx, userID, "tournament", "team registered for "+t.Name)
	return nil
}

func (s *TournamentService) chargeEntry(ctx context.Context, userID string, t *models.Tournament) error {
	desc := "entry fee: " + t.Name
	if t.TokenBased {
		_, err := s.Wallet.ProcessTokenTransaction(ctx, userID, t.EntryFee, models.KindTokenSpent, desc)
		return err
	}
	_, err := s.Wallet.ProcessTransaction(ctx, userID, t.EntryFee, models.KindEntryFee, desc)
	return err
}

// refundEntry compensates a charge whose join record could not be written.
// Refunds reuse the deposit kind so the money is withdrawable again.
func (s *TournamentService) refundEntry(ctx context.Context, userID string, t *models.Tournament) {
	desc := "entry fee refund: " + t.Name
	var err error
	if t.TokenBased {
		_, err = s.Wallet.ProcessTokenTransaction(ctx, userID, t.EntryFee, models.KindTokenEarned, desc)
	} else {
		_, err = s.Wallet.ProcessTransaction(ctx, userID, t.EntryFee, models.KindDeposit, desc)
	}
	if err != nil {
		log.Printf("refund of %s to user %s for tournament %s failed: %v", t.EntryFee, userID, t.ID, err)
	}
}

// GenerateMatches builds round 1. Entrants are shuffled and paired in order;
// an odd entrant gets a bye match, already confirmed with them as winner, so
// nobody is dropped from the bracket.
func (s *TournamentService) GenerateMatches(ctx context.Context, tournamentID string) ([]models.Match, error) {
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	existing, err := s.Store.MatchCount(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrMatchesExist
	}

	entrants, err := s.entrants(ctx, t)
	if err != nil {
		return nil, err
	}
	if len(entrants) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrTooFewEntrants, len(entrants))
	}

	matches := pairRound(t, entrants, 1)
	if err := s.Store.CreateRoundMatches(ctx, t.ID, 1, matches); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrMatchesExist
		}
		return nil, err
	}
	out := make([]models.Match, len(matches))
	for i, m := range matches {
		out[i] = *m
	}
	return out, nil
}

func (s *TournamentService) entrants(ctx context.Context, t *models.Tournament) ([]string, error) {
	if t.Type == models.TournamentTeam {
		return s.Store.TeamIDs(ctx, t.ID)
	}
	parts, err := s.Store.Participants(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.UserID
	}
	return ids, nil
}

// pairRound shuffles the entrants and pairs them sequentially. An odd count
// leaves one entrant with a bye.
func pairRound(t *models.Tournament, entrants []string, round int) []*models.Match {
	shuffled := append([]string(nil), entrants...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var matches []*models.Match
	for i := 0; i+1 < len(shuffled); i += 2 {
		second := shuffled[i+1]
		matches = append(matches, &models.Match{
			ID:             uuid.NewString(),
			TournamentID:   t.ID,
			Type:           t.Type,
			Round:          round,
			Participant1ID: shuffled[i],
			Participant2ID: &second,
		})
	}
	if len(shuffled)%2 == 1 {
		lone := shuffled[len(shuffled)-1]
		winner := lone
		matches = append(matches, &models.Match{
			ID:             uuid.NewString(),
			TournamentID:   t.ID,
			Type:           t.Type,
			Round:          round,
			Participant1ID: lone,
			WinnerID:       &winner,
			IsBye:          true,
			IsConfirmed:    true,
		})
	}
	return matches
}

// mayReport reports whether the user is allowed to act on the match: a side
// of an individual match, or a member of either team of a team match.
func (s *TournamentService) mayReport(ctx context.Context, m *models.Match, userID string) (bool, error) {
	if m.Type != models.TournamentTeam {
		return m.HasSide(userID), nil
	}
	sides := []string{m.Participant1ID}
	if m.Participant2ID != nil {
		sides = append(sides, *m.Participant2ID)
	}
	for _, teamID := range sides {
		team, err := s.Store.TeamByID(ctx, teamID)
		if err != nil {
			return false, err
		}
		if team.HasMember(userID) {
			return true, nil
		}
	}
	return false, nil
}

// ConfirmMatchResult records the winner. The winner id is resolved against
// the match's own sides, so an outsider can never be confirmed. Completing
// the last open match of a round advances the bracket.
func (s *TournamentService) ConfirmMatchResult(ctx context.Context, matchID, winnerID, requesterID, proofURL string) (*models.Match, error) {
	m, err := s.Store.MatchByID(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.IsConfirmed {
		return nil, ErrMatchConfirmed
	}

	allowed, err := s.mayReport(ctx, m, requesterID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotMatchSide
	}
	if !m.HasSide(winnerID) {
		return nil, ErrNotMatchSide
	}

	m.WinnerID = &winnerID
	m.IsConfirmed = true
	m.IsDisputed = false
	m.ResultProofURL = proofURL
	if err := s.Store.SaveMatch(ctx, m); err != nil {
		return nil, err
	}

	if err := s.maybeAdvance(ctx, m.TournamentID, m.Round); err != nil {
		log.Printf("round advancement after match %s failed: %v", m.ID, err)
	}
	return m, nil
}

// DisputeMatch flags the match for manual resolution. A disputed match does
// not advance the bracket.
func (s *TournamentService) DisputeMatch(ctx context.Context, matchID, requesterID, reason string) (*models.Match, error) {
	m, err := s.Store.MatchByID(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.IsConfirmed {
		return nil, ErrMatchConfirmed
	}
	allowed, err := s.mayReport(ctx, m, requesterID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotMatchSide
	}
	m.IsDisputed = true
	m.DisputeReason = reason
	if err := s.Store.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetMatchRoom stores the lobby credentials handed to the two sides.
func (s *TournamentService) SetMatchRoom(ctx context.Context, matchID, roomID, password string) (*models.Match, error) {
	m, err := s.Store.MatchByID(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.RoomID = roomID
	m.Password = password
	if err := s.Store.SaveMatch(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *TournamentService) Matches(ctx context.Context, tournamentID string) ([]models.Match, error) {
	return s.Store.Matches(ctx, tournamentID)
}

// maybeAdvance pairs the round's winners into the next round once every match
// of the round is confirmed. Fewer than two winners means the bracket is done.
func (s *TournamentService) maybeAdvance(ctx context.Context, tournamentID string, round int) error {
	matches, err := s.Store.MatchesByRound(ctx, tournamentID, round)
	if err != nil {
		return err
	}
	var winners []string
	for _, m := range matches {
		if !m.IsConfirmed {
			return nil
		}
		if m.WinnerID != nil {
			winners = append(winners, *m.WinnerID)
		}
	}
	if len(winners) < 2 {
		// Terminal round; the bracket is complete.
		t, err := s.Store.TournamentByID(ctx, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentFinished {
			t.Status = models.TournamentFinished
			if err := s.Store.SaveTournament(ctx, t); err != nil {
				return err
			}
		}
		return nil
	}

	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	next := pairRound(t, winners, round+1)
	if err := s.Store.CreateRoundMatches(ctx, tournamentID, round+1, next); err != nil {
		// Another worker confirmed the round's last match at the same time
		// and already paired the next round.
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return err
	}
	// A bye in the new round may complete it immediately.
	if len(next) == 1 && next[0].IsBye {
		return s.maybeAdvance(ctx, tournamentID, round+1)
	}
	return nil
}

// TournamentWinners ranks entrants by confirmed match wins, ties broken by
// ascending id. Bye wins do not count. A head-to-head duel returns only the
// champion so the loser of the only match is never listed as a winner.
func (s *TournamentService) TournamentWinners(ctx context.Context, tournamentID string) ([]string, error) {
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	matches, err := s.Store.Matches(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	wins := make(map[string]int)
	topRound := 0
	var finalWinner string
	for _, m := range matches {
		if !m.IsConfirmed || m.WinnerID == nil {
			continue
		}
		if !m.IsBye {
			wins[*m.WinnerID]++
		}
		if m.Round > topRound {
			topRound = m.Round
			finalWinner = *m.WinnerID
		}
	}

	entrants, err := s.entrants(ctx, t)
	if err != nil {
		return nil, err
	}
	if len(entrants) <= 2 {
		if finalWinner == "" {
			return nil, nil
		}
		return []string{finalWinner}, nil
	}

	ranked := make([]string, 0, len(wins))
	for id := range wins {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if wins[ranked[i]] != wins[ranked[j]] {
			return wins[ranked[i]] > wins[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > t.WinnerSlots {
		ranked = ranked[:t.WinnerSlots]
	}
	return ranked, nil
}

// CreateWinnerSubmission accepts prize evidence from an entrant who actually
// placed. For team tournaments any member of a winning team may submit.
func (s *TournamentService) CreateWinnerSubmission(ctx context.Context, tournamentID, userID, evidenceURL string) (*models.WinnerSubmission, error) {
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	winners, err := s.TournamentWinners(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	eligible := false
	for _, w := range winners {
		if w == userID {
			eligible = true
			break
		}
		if t.Type == models.TournamentTeam {
			team, err := s.Store.TeamByID(ctx, w)
			if err == nil && team.HasMember(userID) {
				eligible = true
				break
			}
		}
	}
	if !eligible {
		return nil, ErrNotWinner
	}

	sub := &models.WinnerSubmission{
		ID:           uuid.NewString(),
		WinnerID:     userID,
		TournamentID: tournamentID,
		EvidenceURL:  evidenceURL,
		Status:       models.SubmissionPending,
	}
	if err := s.Store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApproveWinnerSubmission pays the tournament's prize pool to the submitter.
func (s *TournamentService) ApproveWinnerSubmission(ctx context.Context, submissionID string) (*models.WinnerSubmission, error) {
	sub, err := s.Store.SubmissionByID(ctx, submissionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubmissionPending {
		return nil, ErrAlreadyReviewed
	}
	t, err := s.Store.TournamentByID(ctx, sub.TournamentID)
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionApproved
	if err := s.Store.SaveSubmission(ctx, sub); err != nil {
		return nil, err
	}
	if t.PrizePool.IsPositive() {
		if _, err := s.Wallet.ProcessTransaction(ctx, sub.WinnerID, t.PrizePool, models.KindPrize, "prize: "+t.Name); err != nil {
			log.Printf("prize payout for submission %s failed: %v", sub.ID, err)
			return nil, err
		}
	}
	s.notifyUser(ctx, sub.WinnerID, "tournament", "winner submission approved for "+t.Name)
	return sub, nil
}

// RejectWinnerSubmission refunds every other participant's entry fee. The
// rejected submitter gets neither a prize nor a refund.
func (s *TournamentService) RejectWinnerSubmission(ctx context.Context, submissionID string) (*models.WinnerSubmission, error) {
	sub, err := s.Store.SubmissionByID(ctx, submissionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubmissionPending {
		return nil, ErrAlreadyReviewed
	}
	t, err := s.Store.TournamentByID(ctx, sub.TournamentID)
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionRejected
	if err := s.Store.SaveSubmission(ctx, sub); err != nil {
		return nil, err
	}

	if !t.IsFree {
		parts, err := s.Store.Participants(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			if p.UserID == sub.WinnerID {
				continue
			}
			s.refundEntry(ctx, p.UserID, t)
		}
	}
	s.notifyUser(ctx, sub.WinnerID, "tournament", "winner submission rejected for "+t.Name)
	return sub, nil
}

func (s *TournamentService) notifyUser(ctx context.Context, userID, kind, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, userID, kind, message); err != nil {
		log.Printf("notification failed for user %s: %v", userID, err)
	}
}

// isEntrant reports whether the user competes in the tournament, directly or
// through a joined team's roster.
func (s *TournamentService) isEntrant(ctx context.Context, t *models.Tournament, userID string) (bool, error) {
	joined, err := s.Store.IsParticipant(ctx, t.ID, userID)
	if err != nil || joined {
		return joined, err
	}
	if t.Type != models.TournamentTeam {
		return false, nil
	}
	teamIDs, err := s.Store.TeamIDs(ctx, t.ID)
	if err != nil {
		return false, err
	}
	for _, id := range teamIDs {
		team, err := s.Store.TeamByID(ctx, id)
		if err != nil {
			return false, err
		}
		if team.HasMember(userID) {
			return true, nil
		}
	}
	return false, nil
}

// CreateReport files a conduct complaint against another entrant. Only
// entrants of the tournament may report, and the reported user is notified.
func (s *TournamentService) CreateReport(ctx context.Context, tournamentID, reporterID, reportedUserID string, matchID *string, description, evidenceURL string) (*models.Report, error) {
	if description == "" || reportedUserID == "" {
		return nil, ErrInvalidInput
	}
	if reporterID == reportedUserID {
		return nil, ErrInvalidInput
	}
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.UserByID(ctx, reportedUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	entrant, err := s.isEntrant(ctx, t, reporterID)
	if err != nil {
		return nil, err
	}
	if !entrant {
		return nil, ErrPermissionDenied
	}
	if matchID != nil {
		m, err := s.Store.MatchByID(ctx, *matchID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if m.TournamentID != t.ID {
			return nil, ErrWrongTournament
		}
	}

	r := &models.Report{
		ID:             uuid.NewString(),
		TournamentID:   t.ID,
		MatchID:        matchID,
		ReporterID:     reporterID,
		ReportedUserID: reportedUserID,
		Description:    description,
		EvidenceURL:    evidenceURL,
		Status:         models.ReportPending,
	}
	if err := s.Store.CreateReport(ctx, r); err != nil {
		return nil, err
	}
	s.notifyUser(ctx, reportedUserID, "report", "you have been reported in tournament "+t.Name)
	return r, nil
}

// ResolveReport closes a report in the reporter's favor. With banUser the
// reported user's local mirror is marked banned, which blocks future joins
// until the profile service says otherwise.
func (s *TournamentService) ResolveReport(ctx context.Context, reportID string, banUser bool) (*models.Report, error) {
	r, err := s.Store.ReportByID(ctx, reportID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReportPending {
		return nil, ErrAlreadyReviewed
	}

	if banUser {
		u, err := s.Store.UserByID(ctx, r.ReportedUserID)
		if err != nil {
			return nil, err
		}
		u.IsBanned = true
		if err := s.Store.UpsertUser(ctx, u); err != nil {
			return nil, err
		}
	}

	r.Status = models.ReportResolved
	if err := s.Store.SaveReport(ctx, r); err != nil {
		return nil, err
	}
	msg := "your report has been resolved"
	if banUser {
		msg = "your report has been resolved and the user has been banned"
	}
	s.notifyUser(ctx, r.ReporterID, "report", msg)
	return r, nil
}

// RejectReport closes a report without action against the reported user.
func (s *TournamentService) RejectReport(ctx context.Context, reportID string) (*models.Report, error) {
	r, err := s.Store.ReportByID(ctx, reportID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReportPending {
		return nil, ErrAlreadyReviewed
	}
	r.Status = models.ReportRejected
	if err := s.Store.SaveReport(ctx, r); err != nil {
		return nil, err
	}
	s.notifyUser(ctx, r.ReporterID, "report", "your report has been rejected")
	return r, nil
}

// defaultScoreDistribution awards placement points first place down.
var defaultScoreDistribution = []int{5, 4, 3, 2, 1}

// DistributeScores adds placement points to the ranked winners' local score
// mirrors; for team tournaments every roster member of a placed team scores.
// The sync worker reconciles the mirrors with the profile service afterwards.
func (s *TournamentService) DistributeScores(ctx context.Context, tournamentID string, distribution []int) error {
	if len(distribution) == 0 {
		distribution = defaultScoreDistribution
	}
	t, err := s.Store.TournamentByID(ctx, tournamentID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	winners, err := s.TournamentWinners(ctx, tournamentID)
	if err != nil {
		return err
	}

	for i, w := range winners {
		if i >= len(distribution) {
			break
		}
		points := distribution[i]
		if t.Type == models.TournamentTeam {
			team, err := s.Store.TeamByID(ctx, w)
			if err != nil {
				return err
			}
			for _, memberID := range team.MemberIDs() {
				if err := s.addScore(ctx, memberID, points); err != nil {
					return err
				}
			}
			continue
		}
		if err := s.addScore(ctx, w, points); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentService) addScore(ctx context.Context, userID string, points int) error {
	u, err := s.Store.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	u.Score += points
	return s.Store.UpsertUser(ctx, u)
}
