package store

import (
	"context"

	"game-tournament-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTournamentStore is the Postgres-backed tournament store.
type GormTournamentStore struct {
	db *gorm.DB
}

func NewGormTournamentStore(db *gorm.DB) *GormTournamentStore {
	return &GormTournamentStore{db: db}
}

func (s *GormTournamentStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	return translate(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormTournamentStore) SaveTournament(ctx context.Context, t *models.Tournament) error {
	return translate(s.db.WithContext(ctx).Save(t).Error)
}

func (s *GormTournamentStore) TournamentByID(ctx context.Context, id string) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormTournamentStore) TournamentBySlug(ctx context.Context, slug string) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormTournamentStore) Tournaments(ctx context.Context, status models.TournamentStatus) ([]models.Tournament, error) {
	var list []models.Tournament
	q := s.db.WithContext(ctx).Order("start_time")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *GormTournamentStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *GormTournamentStore) Participants(ctx context.Context, tournamentID string) ([]models.Participant, error) {
	var list []models.Participant
	err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("joined_at").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *GormTournamentStore) ParticipantCount(ctx context.Context, tournamentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("tournament_id = ?", tournamentID).
		Count(&count).Error
	return count, err
}

func (s *GormTournamentStore) IsParticipant(ctx context.Context, tournamentID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *GormTournamentStore) AddTeam(ctx context.Context, tt *models.TournamentTeamEntry) error {
	return translate(s.db.WithContext(ctx).Create(tt).Error)
}

func (s *GormTournamentStore) TeamIDs(ctx context.Context, tournamentID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.TournamentTeamEntry{}).
		Where("tournament_id = ?", tournamentID).
		Order("joined_at").
		Pluck("team_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormTournamentStore) TeamCount(ctx context.Context, tournamentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TournamentTeamEntry{}).
		Where("tournament_id = ?", tournamentID).
		Count(&count).Error
	return count, err
}

func (s *GormTournamentStore) HasTeam(ctx context.Context, tournamentID, teamID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TournamentTeamEntry{}).
		Where("tournament_id = ? AND team_id = ?", tournamentID, teamID).
		Count(&count).Error
	return count > 0, err
}

func (s *GormTournamentStore) CreateRoundMatches(ctx context.Context, tournamentID string, round int, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the tournament row so concurrent advancers serialize on the
		// exists check.
		var t models.Tournament
		if err := forUpdate(tx).First(&t, "id = ?", tournamentID).Error; err != nil {
			return translate(err)
		}
		var existing int64
		if err := tx.Model(&models.Match{}).
			Where("tournament_id = ? AND round = ?", tournamentID, round).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicate
		}
		return translate(tx.Create(matches).Error)
	})
}

func (s *GormTournamentStore) SaveMatch(ctx context.Context, m *models.Match) error {
	return translate(s.db.WithContext(ctx).Save(m).Error)
}

func (s *GormTournamentStore) MatchByID(ctx context.Context, id string) (*models.Match, error) {
	var m models.Match
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormTournamentStore) Matches(ctx context.Context, tournamentID string) ([]models.Match, error) {
	var list []models.Match
	err := s.db.WithContext(ctx).
		Where("tournament_id = ?", tournamentID).
		Order("round, created_at").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *GormTournamentStore) MatchesByRound(ctx context.Context, tournamentID string, round int) ([]models.Match, error) {
	var list []models.Match
	err := s.db.WithContext(ctx).
		Where("tournament_id = ? AND round = ?", tournamentID, round).
		Order("created_at").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *GormTournamentStore) MatchCount(ctx context.Context, tournamentID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Match{}).
		Where("tournament_id = ?", tournamentID).
		Count(&count).Error
	return count, err
}

func (s *GormTournamentStore) CreateReport(ctx context.Context, r *models.Report) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormTournamentStore) SaveReport(ctx context.Context, r *models.Report) error {
	return translate(s.db.WithContext(ctx).Save(r).Error)
}

func (s *GormTournamentStore) ReportByID(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormTournamentStore) CreateSubmission(ctx context.Context, sub *models.WinnerSubmission) error {
	return translate(s.db.WithContext(ctx).Create(sub).Error)
}

func (s *GormTournamentStore) SaveSubmission(ctx context.Context, sub *models.WinnerSubmission) error {
	return translate(s.db.WithContext(ctx).Save(sub).Error)
}

func (s *GormTournamentStore) SubmissionByID(ctx context.Context, id string) (*models.WinnerSubmission, error) {
	var sub models.WinnerSubmission
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *GormTournamentStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormTournamentStore) UpsertUser(ctx context.Context, u *models.User) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "score", "verification_level", "is_banned", "updated_at",
		}),
	}).Create(u).Error
}

func (s *GormTournamentStore) TeamByID(ctx context.Context, id string) (*models.Team, error) {
	var t models.Team
	err := s.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormTournamentStore) UpsertTeam(ctx context.Context, t *models.Team) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit("Members").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "captain_id", "updated_at"}),
		}).Create(t).Error
		if err != nil {
			return err
		}
		// Roster replacement: the team service is the source of truth.
		if err := tx.Where("team_id = ?", t.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if len(t.Members) == 0 {
			return nil
		}
		return tx.Create(&t.Members).Error
	})
}

func (s *GormTournamentStore) HasInGameID(ctx context.Context, userID, game string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.InGameID{}).
		Where("user_id = ? AND game = ?", userID, game).
		Count(&count).Error
	return count > 0, err
}

func (s *GormTournamentStore) UpsertInGameID(ctx context.Context, ig *models.InGameID) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle"}),
	}).Create(ig).Error
}
