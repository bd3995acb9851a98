package models

import (
	"time"
)

// Match is one bracket pairing inside a tournament round. Individual matches
// hold two user participants, team matches two teams, never mixed. A bye match
// has a single participant and is created already confirmed with that
// participant as winner, so the odd entrant advances instead of being dropped.
//
// A match is confirmed at most once; confirmation is what advances the round.
type Match struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string         `gorm:"type:uuid;not null;index" json:"tournament_id"`
	Type         TournamentType `gorm:"type:varchar(20);not null;default:'individual'" json:"type"`
	Round        int            `gorm:"not null;index" json:"round"`

	Participant1ID string  `gorm:"type:uuid;not null" json:"participant1_id"`
	Participant2ID *string `gorm:"type:uuid" json:"participant2_id,omitempty"`
	WinnerID       *string `gorm:"type:uuid;index" json:"winner_id,omitempty"`

	IsBye          bool   `gorm:"not null;default:false" json:"is_bye"`
	IsConfirmed    bool   `gorm:"not null;default:false" json:"is_confirmed"`
	IsDisputed     bool   `gorm:"not null;default:false" json:"is_disputed"`
	DisputeReason  string `gorm:"type:text" json:"dispute_reason,omitempty"`
	ResultProofURL string `gorm:"type:text" json:"result_proof_url,omitempty"`

	// Room credentials handed to the two sides before the match starts.
	RoomID   string `gorm:"type:varchar(100)" json:"room_id,omitempty"`
	Password string `gorm:"type:varchar(100)" json:"-"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// HasSide reports whether the given user or team id is one of the match's
// participants. For team matches, pass the team id.
func (m *Match) HasSide(id string) bool {
	if m.Participant1ID == id {
		return true
	}
	return m.Participant2ID != nil && *m.Participant2ID == id
}
