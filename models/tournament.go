package models

import (
	"time"
)

// Tournament is a single-elimination bracket with an entry fee.
// MaxPlayers must be a power of two; byes are not supported.
type Tournament struct {
	ID         string           `gorm:"primaryKey;type:uuid" json:"id"`
	Game       string           `gorm:"type:varchar(32);not null;index" json:"game"`
	Name       string           `json:"name"`
	TeamSize   int              `gorm:"not null;default:1" json:"team_size"`
	EntryFee   float64          `gorm:"not null" json:"entry_fee"`
	Currency   string           `gorm:"type:varchar(8);not null" json:"currency"`
	MaxPlayers int              `gorm:"not null" json:"max_players"`
	Rake       float64          `gorm:"not null;default:0" json:"rake"`
	Status     TournamentStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	StartsAt   *time.Time       `json:"starts_at,omitempty"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	Participants []TournamentParticipant `gorm:"foreignKey:TournamentID" json:"participants,omitempty"`
	Matches      []TournamentMatch       `gorm:"foreignKey:TournamentID" json:"matches,omitempty"`

	// Calculated, not stored.
	ParticipantCount int64 `gorm:"-" json:"participant_count,omitempty"`
}

// Pool is the total prize pool after rake.
func (t *Tournament) Pool() float64 {
	return t.EntryFee * float64(t.MaxPlayers) * (1 - t.Rake)
}

type ParticipantStatus string

const (
	ParticipantJoined     ParticipantStatus = "joined"
	ParticipantEliminated ParticipantStatus = "eliminated"
	ParticipantWinner     ParticipantStatus = "winner"
)

// TournamentParticipant is one entrant. (tournament_id, user_id) is unique;
// the row count against MaxPlayers gates bracket start.
type TournamentParticipant struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string            `gorm:"not null;index;uniqueIndex:idx_tourn_user" json:"tournament_id"`
	UserID       string            `gorm:"not null;index;uniqueIndex:idx_tourn_user" json:"user_id"`
	Status       ParticipantStatus `gorm:"type:varchar(16);not null;default:'joined'" json:"status"`
	JoinedAt     time.Time         `gorm:"autoCreateTime" json:"joined_at"`
}

// TournamentMatch is one bracket pairing. Round is 1-based; Seq preserves
// creation order inside a round so winners advance with stable semantics.
// Invariant: winner set iff status is done.
type TournamentMatch struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string     `gorm:"not null;index" json:"tournament_id"`
	Round        int        `gorm:"not null;index" json:"round"`
	Seq          int        `gorm:"not null" json:"seq"`
	Game         string     `gorm:"type:varchar(32);not null" json:"game"`
	Map          string     `json:"map,omitempty"`
	Server       string     `json:"server,omitempty"`
	Credentials  string     `json:"credentials,omitempty"`
	JoinURL      string     `json:"join_url,omitempty"`
	P1UserID     string     `gorm:"not null" json:"p1_user_id"`
	P2UserID     string     `gorm:"not null" json:"p2_user_id"`
	P1Ready      bool       `gorm:"not null;default:false" json:"p1_ready"`
	P2Ready      bool       `gorm:"not null;default:false" json:"p2_ready"`
	WinnerUserID *string    `json:"winner_user_id,omitempty"`
	Status       DuelStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	ResultSource string     `gorm:"type:varchar(16)" json:"result_source,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// HasPlayer reports whether the user occupies one of the two slots.
func (m *TournamentMatch) HasPlayer(userID string) bool {
	return m.P1UserID == userID || m.P2UserID == userID
}

// Opponent returns the other slot's user id.
func (m *TournamentMatch) Opponent(userID string) string {
	if m.P1UserID == userID {
		return m.P2UserID
	}
	return m.P1UserID
}
