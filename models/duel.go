package models

import (
	"time"
)

// Duel is a wagered match between two sides, 1v1 or NvN.
// Every player on the roster escrows the same stake at entry; the stake flows
// back out exactly once, either as a prize share on done or a refund on cancelled.
type Duel struct {
	ID       string     `gorm:"primaryKey;type:uuid" json:"id"`
	Game     string     `gorm:"type:varchar(32);not null;index" json:"game"`
	TeamSize int        `gorm:"not null;default:1" json:"team_size"`
	Stake    float64    `gorm:"not null" json:"stake"`
	Currency string     `gorm:"type:varchar(8);not null" json:"currency"`
	Rake     float64    `gorm:"not null;default:0" json:"rake"`
	Status   DuelStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`

	// Game-specific session data, assigned by the match config provider.
	Map         string `json:"map,omitempty"`
	Server      string `json:"server,omitempty"`
	Credentials string `json:"credentials,omitempty"`
	JoinURL     string `json:"join_url,omitempty"`

	CreatorUserID string     `gorm:"not null;index" json:"creator_user_id"`
	WinnerUserID  *string    `json:"winner_user_id,omitempty"`
	WinnerTeam    *int       `json:"winner_team,omitempty"`
	ReadyDeadline *time.Time `json:"ready_deadline,omitempty"`
	ResultSource  string     `gorm:"type:varchar(16)" json:"result_source,omitempty"`
	CancelReason  string     `gorm:"type:varchar(32)" json:"cancel_reason,omitempty"`

	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Players []DuelPlayer `gorm:"foreignKey:DuelID" json:"players,omitempty"`
}

// RequiredPlayers is the full headcount needed before the duel can go active.
func (d *Duel) RequiredPlayers() int {
	return 2 * d.TeamSize
}

// DuelPlayer is one roster slot. (duel_id, user_id) is unique; team is 1 or 2.
type DuelPlayer struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	DuelID    string    `gorm:"not null;index;uniqueIndex:idx_duel_user" json:"duel_id"`
	UserID    string    `gorm:"not null;index;uniqueIndex:idx_duel_user" json:"user_id"`
	Team      int       `gorm:"not null" json:"team"`
	IsCaptain bool      `gorm:"not null;default:false" json:"is_captain"`
	Ready     bool      `gorm:"not null;default:false" json:"ready"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// MatchReport is a single self-report. One row per (ref, user); a repeat
// report from the same user replaces the earlier one while unresolved.
// RefID points at either a duel or a tournament match, disambiguated by RefKind.
type MatchReport struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	RefID     string    `gorm:"not null;index;uniqueIndex:idx_report_ref_user" json:"ref_id"`
	RefKind   string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_report_ref_user" json:"ref_kind"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_report_ref_user" json:"user_id"`
	Result    string    `gorm:"type:varchar(8);not null" json:"result"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	ReportRefDuel  = "duel"
	ReportRefMatch = "match"

	ReportWin  = "win"
	ReportLose = "lose"
)
