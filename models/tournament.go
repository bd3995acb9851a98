package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TournamentType string

const (
	TournamentIndividual TournamentType = "individual"
	TournamentTeam       TournamentType = "team"
)

type TournamentStatus string

const (
	TournamentDraft       TournamentStatus = "draft"
	TournamentRegistering TournamentStatus = "registering"
	TournamentLive        TournamentStatus = "live"
	TournamentFinished    TournamentStatus = "finished"
)

// Tournament is a bracketed competition. Individual tournaments hold user
// participants, team tournaments hold teams; the two never mix. Paid
// tournaments carry a positive entry fee, token-based ones charge the token
// balance instead of money.
type Tournament struct {
	ID              string           `gorm:"primaryKey;type:uuid" json:"id"`
	Slug            string           `gorm:"uniqueIndex;not null" json:"slug"`
	Name            string           `gorm:"not null" json:"name"`
	Description     string           `gorm:"type:text" json:"description"`
	Rules           string           `gorm:"type:text" json:"rules"`
	Game            string           `gorm:"type:varchar(100);not null;index" json:"game"`
	Type            TournamentType   `gorm:"type:varchar(20);not null;default:'individual'" json:"type"`
	Status          TournamentStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	MaxParticipants int              `gorm:"not null;default:100" json:"max_participants"`
	TeamSize        int              `gorm:"not null;default:1" json:"team_size"`
	IsFree          bool             `gorm:"not null;default:true" json:"is_free"`
	TokenBased      bool             `gorm:"not null;default:false" json:"token_based"`
	EntryFee        decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"entry_fee"`
	PrizePool       decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"prize_pool"`
	WinnerSlots     int              `gorm:"not null;default:3" json:"winner_slots"`

	RegistrationStart *time.Time `json:"registration_start,omitempty"`
	RegistrationEnd   *time.Time `json:"registration_end,omitempty"`
	StartTime         time.Time  `gorm:"not null" json:"start_time"`
	EndTime           time.Time  `gorm:"not null" json:"end_time"`

	RequiredVerificationLevel int    `gorm:"not null;default:1" json:"required_verification_level"`
	CreatorID                 string `gorm:"type:uuid" json:"creator_id,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated, not stored
	ParticipantCount int64 `json:"participant_count,omitempty" gorm:"-"`
}

type ParticipantStatus string

const (
	ParticipantRegistered ParticipantStatus = "registered"
	ParticipantCheckedIn  ParticipantStatus = "checked_in"
	ParticipantEliminated ParticipantStatus = "eliminated"
)

// Participant is one user's join record. Unique per (user, tournament); for
// team tournaments every roster member gets one alongside the team record.
type Participant struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string            `gorm:"type:uuid;not null;index:idx_participant_pair,unique" json:"user_id"`
	TournamentID string            `gorm:"type:uuid;not null;index:idx_participant_pair,unique" json:"tournament_id"`
	Status       ParticipantStatus `gorm:"type:varchar(20);not null;default:'registered'" json:"status"`
	JoinedAt     time.Time         `json:"joined_at" gorm:"autoCreateTime"`
}

// TournamentTeamEntry records a team's entry into a team tournament.
type TournamentTeamEntry struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string    `gorm:"type:uuid;not null;index:idx_tournament_team,unique" json:"tournament_id"`
	TeamID       string    `gorm:"type:uuid;not null;index:idx_tournament_team,unique" json:"team_id"`
	JoinedAt     time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"
	ReportRejected ReportStatus = "rejected"
)

// Report is a conduct complaint one entrant files against another, optionally
// tied to a specific match. Resolution may ban the reported user.
type Report struct {
	ID             string       `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID   string       `gorm:"type:uuid;not null;index" json:"tournament_id"`
	MatchID        *string      `gorm:"type:uuid" json:"match_id,omitempty"`
	ReporterID     string       `gorm:"type:uuid;not null;index" json:"reporter_id"`
	ReportedUserID string       `gorm:"type:uuid;not null;index" json:"reported_user_id"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	EvidenceURL    string       `gorm:"type:text" json:"evidence_url,omitempty"`
	Status         ReportStatus `gorm:"type:varchar(10);not null;default:'pending'" json:"status"`
	CreatedAt      time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// WinnerSubmission is post-tournament evidence from a declared winner. Approval
// pays the prize pool; rejection refunds every other participant's entry fee.
type WinnerSubmission struct {
	ID           string           `gorm:"primaryKey;type:uuid" json:"id"`
	WinnerID     string           `gorm:"type:uuid;not null;index" json:"winner_id"`
	TournamentID string           `gorm:"type:uuid;not null;index" json:"tournament_id"`
	EvidenceURL  string           `gorm:"type:text" json:"evidence_url"`
	Status       SubmissionStatus `gorm:"type:varchar(10);not null;default:'pending'" json:"status"`
	CreatedAt    time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}
