package models

import (
	"time"
)

// HouseUserID receives rake and consumed tournament entry fees.
const HouseUserID = "house"

// WalletAccount is the per-user, per-currency balance. Balance is spendable;
// Escrowed is held against a specific duel or tournament entry and can only
// move back to Balance (refund) or out to another party (prize/consume).
type WalletAccount struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;index;uniqueIndex:idx_wallet_user_ccy" json:"user_id"`
	Currency  string    `gorm:"type:varchar(8);not null;uniqueIndex:idx_wallet_user_ccy" json:"currency"`
	Balance   float64   `gorm:"not null;default:0" json:"balance"`
	Escrowed  float64   `gorm:"not null;default:0" json:"escrowed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Transaction kinds. One kind per event; the optional fields below are only
// meaningful for the kinds that set them (no open-ended meta blob).
const (
	TxDeposit       = "deposit"
	TxEscrow        = "escrow"
	TxEscrowRelease = "escrow_release"
	TxEscrowConsume = "escrow_consume"
	TxPrize         = "prize"
	TxRake          = "rake"
)

// WalletTransaction is an append-only ledger entry. RefID carries the duel or
// tournament id for reconciliation; Reason/Placement/Source qualify refunds,
// payouts, and finalizations respectively.
type WalletTransaction struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Currency  string    `gorm:"type:varchar(8);not null" json:"currency"`
	Kind      string    `gorm:"type:varchar(24);not null" json:"kind"`
	Amount    float64   `gorm:"not null" json:"amount"`
	RefID     string    `gorm:"index" json:"ref_id,omitempty"`
	RefKind   string    `gorm:"type:varchar(16)" json:"ref_kind,omitempty"`
	Reason    string    `gorm:"type:varchar(32)" json:"reason,omitempty"`
	Placement int       `json:"placement,omitempty"`
	Source    string    `gorm:"type:varchar(16)" json:"source,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
