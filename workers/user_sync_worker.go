package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"game-tournament-system/models"
	"game-tournament-system/services"
	"game-tournament-system/store"
)

// mirroredUser matches the JSON the profile service returns for a changed
// user, including the in-game handles attached to the profile.
type mirroredUser struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Score             int       `json:"score"`
	VerificationLevel int       `json:"verification_level"`
	IsBanned          bool      `json:"is_banned"`
	UpdatedAt         time.Time `json:"updated_at"`
	InGameIDs         []struct {
		Game   string `json:"game"`
		Handle string `json:"handle"`
	} `json:"in_game_ids,omitempty"`
}

type mirroredTeam struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CaptainID string    `json:"captain_id"`
	MemberIDs []string  `json:"member_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []mirroredUser `json:"users"`
	Teams []mirroredTeam `json:"teams"`
}

// UserSyncWorker mirrors users, teams and in-game handles from the profile
// service into the local store, and opens a wallet with the sign-up token
// bonus the first time a user appears.
type UserSyncWorker struct {
	store        store.TournamentStore
	ledger       store.LedgerStore
	wallet       *services.WalletService
	baseURL      string
	endpointPath string
	serviceToken string
	signupBonus  decimal.Decimal
	interval     time.Duration
	httpClient   *http.Client

	lastSync time.Time
}

func NewUserSyncWorker(tstore store.TournamentStore, ledger store.LedgerStore, wallet *services.WalletService, baseURL, endpointPath, serviceToken string, signupBonus decimal.Decimal) *UserSyncWorker {
	return &UserSyncWorker{
		store:        tstore,
		ledger:       ledger,
		wallet:       wallet,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		signupBonus:  signupBonus,
		interval:     1 * time.Minute,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("[SYNC] starting user sync worker (profile service -> local mirror)")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Backfill from the beginning on startup; incremental syncs afterwards.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("[SYNC] initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSync); err != nil {
				log.Printf("[SYNC] sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("[SYNC] user sync worker stopped")
			return
		}
	}
}

// syncBatch fetches user and team changes since the given time and upserts
// them locally.
func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}

	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var changes profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}

	if len(changes.Users) == 0 && len(changes.Teams) == 0 {
		return nil
	}

	var userErrs, teamErrs int
	for _, ru := range changes.Users {
		if err := w.applyUser(ctx, ru); err != nil {
			userErrs++
			log.Printf("[SYNC] failed to mirror user %s (%s): %v", ru.ID, ru.Username, err)
		}
		if ru.UpdatedAt.After(w.lastSync) {
			w.lastSync = ru.UpdatedAt
		}
	}
	for _, rt := range changes.Teams {
		if err := w.applyTeam(ctx, rt); err != nil {
			teamErrs++
			log.Printf("[SYNC] failed to mirror team %s (%s): %v", rt.ID, rt.Name, err)
		}
		if rt.UpdatedAt.After(w.lastSync) {
			w.lastSync = rt.UpdatedAt
		}
	}

	log.Printf("[SYNC] mirrored %d user(s), %d team(s) (%d user errors, %d team errors)",
		len(changes.Users), len(changes.Teams), userErrs, teamErrs)
	return nil
}

// applyUser upserts the user mirror and its in-game handles. A user seen for
// the first time gets a wallet seeded with the sign-up token bonus.
func (w *UserSyncWorker) applyUser(ctx context.Context, ru mirroredUser) error {
	if err := w.store.UpsertUser(ctx, &models.User{
		ID:                ru.ID,
		Username:          ru.Username,
		Score:             ru.Score,
		VerificationLevel: ru.VerificationLevel,
		IsBanned:          ru.IsBanned,
	}); err != nil {
		return err
	}

	for _, ig := range ru.InGameIDs {
		if err := w.store.UpsertInGameID(ctx, &models.InGameID{
			ID:     uuid.NewString(),
			UserID: ru.ID,
			Game:   ig.Game,
			Handle: ig.Handle,
		}); err != nil {
			log.Printf("[SYNC] failed to mirror in-game id %s/%s for user %s: %v", ig.Game, ig.Handle, ru.ID, err)
		}
	}

	return w.ensureWallet(ctx, ru.ID)
}

func (w *UserSyncWorker) applyTeam(ctx context.Context, rt mirroredTeam) error {
	team := &models.Team{
		ID:        rt.ID,
		Name:      rt.Name,
		CaptainID: rt.CaptainID,
	}
	for _, uid := range rt.MemberIDs {
		if uid == rt.CaptainID {
			continue
		}
		team.Members = append(team.Members, models.TeamMember{
			ID:     uuid.NewString(),
			TeamID: rt.ID,
			UserID: uid,
		})
	}
	return w.store.UpsertTeam(ctx, team)
}

// ensureWallet opens a wallet for the user if none exists yet and credits
// the one-time sign-up token bonus through the ledger.
func (w *UserSyncWorker) ensureWallet(ctx context.Context, userID string) error {
	_, err := w.ledger.WalletByUser(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := w.ledger.CreateWallet(ctx, &models.Wallet{
		ID:     uuid.NewString(),
		UserID: userID,
	}); err != nil {
		// Lost a race with another replica; the wallet exists either way.
		if errors.Is(err, store.ErrDuplicate) {
			return nil
		}
		return err
	}

	if w.signupBonus.IsPositive() {
		if _, err := w.wallet.ProcessTokenTransaction(ctx, userID, w.signupBonus, models.KindTokenEarned, "sign-up bonus"); err != nil {
			return fmt.Errorf("failed to credit sign-up bonus: %w", err)
		}
	}
	return nil
}
