package models

import (
	"time"
)

// User is a local snapshot of the profile service's user record — only the
// fields tournament eligibility and wallet ownership need. Populated by the
// sync worker; never written by request handlers.
type User struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	Username          string    `gorm:"index;not null" json:"username"`
	Score             int       `gorm:"not null;default:0" json:"score"`
	VerificationLevel int       `gorm:"not null;default:1" json:"verification_level"`
	IsBanned          bool      `gorm:"not null;default:false" json:"is_banned"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// InGameID links a user to their handle inside a specific game. Individual
// tournaments require one for the tournament's game before joining.
type InGameID struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index:idx_ingame_user_game,unique" json:"user_id"`
	Game      string    `gorm:"type:varchar(100);not null;index:idx_ingame_user_game,unique" json:"game"`
	Handle    string    `gorm:"type:varchar(100);not null" json:"handle"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Team mirrors the team service's roster. Only the captain may commit the
// team to a tournament.
type Team struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CaptainID string    `gorm:"type:uuid;not null;index" json:"captain_id"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Members []TeamMember `json:"members,omitempty" gorm:"foreignKey:TeamID"`
}

// MemberIDs returns every user on the team, captain included.
func (t *Team) MemberIDs() []string {
	ids := []string{t.CaptainID}
	for _, m := range t.Members {
		if m.UserID != t.CaptainID {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// HasMember reports whether the user is the captain or a roster member.
func (t *Team) HasMember(userID string) bool {
	if t.CaptainID == userID {
		return true
	}
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

type TeamMember struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	TeamID string `gorm:"type:uuid;not null;index:idx_team_member,unique" json:"team_id"`
	UserID string `gorm:"type:uuid;not null;index:idx_team_member,unique" json:"user_id"`
}
