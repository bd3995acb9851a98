package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"game-tournament-system/models"
)

// In-memory implementations of both stores. They keep the same locking
// discipline as the Postgres versions (per-wallet exclusive locks, ascending
// user-id acquisition order) so service tests exercise real concurrency.
// Also handy for local development without a database.

type walletSlot struct {
	mu     sync.Mutex
	wallet models.Wallet
}

type MemoryLedgerStore struct {
	mu       sync.Mutex
	wallets  map[string]*walletSlot // keyed by user id
	byID     map[string]string      // wallet id -> user id
	entries  []*models.Transaction
	requests map[string]*models.WithdrawalRequest
	seq      int64
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		wallets:  make(map[string]*walletSlot),
		byID:     make(map[string]string),
		requests: make(map[string]*models.WithdrawalRequest),
	}
}

func (s *MemoryLedgerStore) CreateWallet(_ context.Context, w *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.UserID]; ok {
		return ErrDuplicate
	}
	cp := *w
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.wallets[w.UserID] = &walletSlot{wallet: cp}
	s.byID[w.ID] = w.UserID
	return nil
}

func (s *MemoryLedgerStore) WalletByUser(_ context.Context, userID string) (*models.Wallet, error) {
	s.mu.Lock()
	slot, ok := s.wallets[userID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	cp := slot.wallet
	return &cp, nil
}

func (s *MemoryLedgerStore) WalletByID(_ context.Context, id string) (*models.Wallet, error) {
	s.mu.Lock()
	userID, ok := s.byID[id]
	var slot *walletSlot
	if ok {
		slot = s.wallets[userID]
	}
	s.mu.Unlock()
	if slot == nil {
		return nil, ErrNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	cp := slot.wallet
	return &cp, nil
}

func (s *MemoryLedgerStore) UpdateWallet(_ context.Context, userID string, fn WalletUpdateFn) (*Mutation, error) {
	s.mu.Lock()
	slot, ok := s.wallets[userID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	work := slot.wallet
	mut, err := fn(&work, &memoryLedgerView{store: s})
	if err != nil {
		return nil, err
	}
	if err := s.commit(mut); err != nil {
		return nil, err
	}
	slot.wallet = work
	return mut, nil
}

func (s *MemoryLedgerStore) UpdateWallets(_ context.Context, userIDs []string, fn WalletsUpdateFn) (*Mutation, error) {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)

	slots := make([]*walletSlot, 0, len(ids))
	s.mu.Lock()
	for _, id := range ids {
		slot, ok := s.wallets[id]
		if !ok {
			s.mu.Unlock()
			return nil, ErrNotFound
		}
		slots = append(slots, slot)
	}
	s.mu.Unlock()

	for _, slot := range slots {
		slot.mu.Lock()
	}
	defer func() {
		for i := len(slots) - 1; i >= 0; i-- {
			slots[i].mu.Unlock()
		}
	}()

	work := make([]models.Wallet, len(slots))
	refs := make([]*models.Wallet, len(slots))
	for i, slot := range slots {
		work[i] = slot.wallet
		refs[i] = &work[i]
	}
	mut, err := fn(refs, &memoryLedgerView{store: s})
	if err != nil {
		return nil, err
	}
	if err := s.commit(mut); err != nil {
		return nil, err
	}
	for i, slot := range slots {
		slot.wallet = work[i]
	}
	return mut, nil
}

// commit appends the mutation's records under the store lock. Caller must
// already hold the affected wallet locks.
func (s *MemoryLedgerStore) commit(m *Mutation) error {
	if m == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range m.Entries {
		if err := s.appendLocked(e); err != nil {
			return err
		}
	}
	for _, r := range m.Requests {
		cp := *r
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		s.requests[r.ID] = &cp
	}
	return nil
}

func (s *MemoryLedgerStore) appendLocked(t *models.Transaction) error {
	if t.OrderID != nil {
		for _, e := range s.entries {
			if e.OrderID != nil && *e.OrderID == *t.OrderID {
				return ErrDuplicate
			}
		}
	}
	cp := *t
	s.seq++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().Add(time.Duration(s.seq)) // preserve insertion order
	}
	s.entries = append(s.entries, &cp)
	*t = cp
	return nil
}

func (s *MemoryLedgerStore) CreateTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(t)
}

func (s *MemoryLedgerStore) SaveTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == t.ID {
			created := e.CreatedAt
			*e = *t
			e.CreatedAt = created
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryLedgerStore) TransactionByOrder(_ context.Context, orderID, trackID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.OrderID != nil && *e.OrderID == orderID && e.TrackID != nil && *e.TrackID == trackID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryLedgerStore) TransactionsByWallet(_ context.Context, walletID string, limit int) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].WalletID == walletID {
			out = append(out, *s.entries[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryLedgerStore) PendingDeposits(_ context.Context, olderThan time.Time) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, e := range s.entries {
		if e.Status == models.TxPending && e.OrderID != nil && e.CreatedAt.Before(olderThan) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *MemoryLedgerStore) SettleDeposit(ctx context.Context, orderID, trackID, refNumber string) (*models.Transaction, bool, error) {
	s.mu.Lock()
	var target *models.Transaction
	for _, e := range s.entries {
		if e.OrderID != nil && *e.OrderID == orderID && e.TrackID != nil && *e.TrackID == trackID {
			target = e
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return nil, false, ErrNotFound
	}
	userID, ok := s.byID[target.WalletID]
	s.mu.Unlock()
	if !ok {
		return nil, false, ErrNotFound
	}

	slot := func() *walletSlot {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.wallets[userID]
	}()
	slot.mu.Lock()
	defer slot.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the wallet lock: a concurrent settle may have won.
	if target.Status != models.TxPending {
		cp := *target
		return &cp, false, nil
	}
	slot.wallet.TotalBalance = slot.wallet.TotalBalance.Add(target.Amount)
	slot.wallet.WithdrawableBalance = slot.wallet.WithdrawableBalance.Add(target.Amount)
	target.Status = models.TxSuccess
	target.RefNumber = refNumber
	cp := *target
	return &cp, true, nil
}

func (s *MemoryLedgerStore) WithdrawalRequestByID(_ context.Context, id string) (*models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wr, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *wr
	return &cp, nil
}

func (s *MemoryLedgerStore) WithdrawalRequestsByUser(_ context.Context, userID string) ([]models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WithdrawalRequest
	for _, wr := range s.requests {
		if wr.UserID == userID {
			out = append(out, *wr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryLedgerView struct {
	store *MemoryLedgerStore
}

func (v *memoryLedgerView) LastSuccessfulByKind(userID string, kind models.TransactionKind) (*models.Transaction, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	slot, ok := v.store.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	walletID := slot.wallet.ID
	for i := len(v.store.entries) - 1; i >= 0; i-- {
		e := v.store.entries[i]
		if e.WalletID == walletID && e.Kind == kind && e.Status == models.TxSuccess {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (v *memoryLedgerView) HasPendingWithdrawal(userID string) (bool, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	for _, wr := range v.store.requests {
		if wr.UserID == userID && wr.Status == models.WithdrawalPending {
			return true, nil
		}
	}
	return false, nil
}

// MemoryTournamentStore mirrors GormTournamentStore over plain maps.
type MemoryTournamentStore struct {
	mu           sync.RWMutex
	tournaments  map[string]*models.Tournament
	participants []*models.Participant
	teams        []*models.TournamentTeamEntry
	matches      map[string]*models.Match
	matchOrder   []string
	submissions  map[string]*models.WinnerSubmission
	reports      map[string]*models.Report
	users        map[string]*models.User
	rosters      map[string]*models.Team
	inGameIDs    []*models.InGameID
}

func NewMemoryTournamentStore() *MemoryTournamentStore {
	return &MemoryTournamentStore{
		tournaments: make(map[string]*models.Tournament),
		matches:     make(map[string]*models.Match),
		submissions: make(map[string]*models.WinnerSubmission),
		reports:     make(map[string]*models.Report),
		users:       make(map[string]*models.User),
		rosters:     make(map[string]*models.Team),
	}
}

func (s *MemoryTournamentStore) CreateTournament(_ context.Context, t *models.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tournaments[t.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.tournaments {
		if existing.Slug == t.Slug {
			return ErrDuplicate
		}
	}
	cp := *t
	s.tournaments[t.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) SaveTournament(_ context.Context, t *models.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tournaments[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	s.tournaments[t.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) TournamentByID(_ context.Context, id string) (*models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryTournamentStore) TournamentBySlug(_ context.Context, slug string) (*models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tournaments {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryTournamentStore) Tournaments(_ context.Context, status models.TournamentStatus) ([]models.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Tournament
	for _, t := range s.tournaments {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryTournamentStore) CreateParticipant(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			return ErrDuplicate
		}
	}
	cp := *p
	if cp.JoinedAt.IsZero() {
		cp.JoinedAt = time.Now()
	}
	s.participants = append(s.participants, &cp)
	return nil
}

func (s *MemoryTournamentStore) Participants(_ context.Context, tournamentID string) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Participant
	for _, p := range s.participants {
		if p.TournamentID == tournamentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryTournamentStore) ParticipantCount(_ context.Context, tournamentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, p := range s.participants {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryTournamentStore) IsParticipant(_ context.Context, tournamentID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.TournamentID == tournamentID && p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryTournamentStore) AddTeam(_ context.Context, tt *models.TournamentTeamEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.teams {
		if existing.TournamentID == tt.TournamentID && existing.TeamID == tt.TeamID {
			return ErrDuplicate
		}
	}
	cp := *tt
	if cp.JoinedAt.IsZero() {
		cp.JoinedAt = time.Now()
	}
	s.teams = append(s.teams, &cp)
	return nil
}

func (s *MemoryTournamentStore) TeamIDs(_ context.Context, tournamentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, tt := range s.teams {
		if tt.TournamentID == tournamentID {
			out = append(out, tt.TeamID)
		}
	}
	return out, nil
}

func (s *MemoryTournamentStore) TeamCount(_ context.Context, tournamentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, tt := range s.teams {
		if tt.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryTournamentStore) HasTeam(_ context.Context, tournamentID, teamID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tt := range s.teams {
		if tt.TournamentID == tournamentID && tt.TeamID == teamID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryTournamentStore) CreateRoundMatches(_ context.Context, tournamentID string, round int, matches []*models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.matchOrder {
		m := s.matches[id]
		if m.TournamentID == tournamentID && m.Round == round {
			return ErrDuplicate
		}
	}
	for _, m := range matches {
		cp := *m
		s.matches[m.ID] = &cp
		s.matchOrder = append(s.matchOrder, m.ID)
	}
	return nil
}

func (s *MemoryTournamentStore) SaveMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	s.matches[m.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) MatchByID(_ context.Context, id string) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryTournamentStore) Matches(_ context.Context, tournamentID string) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match
	for _, id := range s.matchOrder {
		if m := s.matches[id]; m.TournamentID == tournamentID {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out, nil
}

func (s *MemoryTournamentStore) MatchesByRound(_ context.Context, tournamentID string, round int) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Match
	for _, id := range s.matchOrder {
		if m := s.matches[id]; m.TournamentID == tournamentID && m.Round == round {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *MemoryTournamentStore) MatchCount(_ context.Context, tournamentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, m := range s.matches {
		if m.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryTournamentStore) CreateReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return ErrDuplicate
	}
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) SaveReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) ReportByID(_ context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryTournamentStore) CreateSubmission(_ context.Context, sub *models.WinnerSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; ok {
		return ErrDuplicate
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) SaveSubmission(_ context.Context, sub *models.WinnerSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; !ok {
		return ErrNotFound
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) SubmissionByID(_ context.Context, id string) (*models.WinnerSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryTournamentStore) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryTournamentStore) UpsertUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) TeamByID(_ context.Context, id string) (*models.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.rosters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	cp.Members = append([]models.TeamMember(nil), t.Members...)
	return &cp, nil
}

func (s *MemoryTournamentStore) UpsertTeam(_ context.Context, t *models.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.Members = append([]models.TeamMember(nil), t.Members...)
	s.rosters[t.ID] = &cp
	return nil
}

func (s *MemoryTournamentStore) HasInGameID(_ context.Context, userID, game string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ig := range s.inGameIDs {
		if ig.UserID == userID && ig.Game == game {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryTournamentStore) UpsertInGameID(_ context.Context, ig *models.InGameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.inGameIDs {
		if existing.UserID == ig.UserID && existing.Game == ig.Game {
			existing.Handle = ig.Handle
			return nil
		}
	}
	cp := *ig
	s.inGameIDs = append(s.inGameIDs, &cp)
	return nil
}
