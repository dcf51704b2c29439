package services

import (
	"log"
	"time"

	"github.com/Demideni/beavbet1-sub000/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sweeper cancels timed-out duels and refunds their escrow. Each duel is
// handled in its own transaction with a status guard, so a sweep racing a
// join, a finalize or another sweep settles each duel exactly once.
type Sweeper struct {
	DB     *gorm.DB
	Wallet *WalletService

	// StaleOpenWindow is how long an open duel may wait for an opponent.
	StaleOpenWindow time.Duration
}

func NewSweeper(db *gorm.DB, wallet *WalletService, staleOpenWindow time.Duration) *Sweeper {
	return &Sweeper{DB: db, Wallet: wallet, StaleOpenWindow: staleOpenWindow}
}

// SweepOnce runs both timeout passes. A refund failure rolls back that duel
// only; it stays eligible for the next pass.
func (s *Sweeper) SweepOnce() error {
	now := time.Now()
	if err := s.sweepStaleOpen(now); err != nil {
		return err
	}
	return s.sweepReadyTimeouts(now)
}

// sweepStaleOpen cancels open duels that never found an opponent within the
// window and releases the creator's stake.
func (s *Sweeper) sweepStaleOpen(now time.Time) error {
	var ids []string
	err := s.DB.Model(&models.Duel{}).
		Where("status = ? AND created_at < ?", models.DuelOpen, now.Add(-s.StaleOpenWindow)).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.cancelDuel(id, models.DuelOpen, models.CancelNoAcceptTimeout); err != nil {
			log.Printf("[Sweeper] cancel of stale duel %s failed: %v", id, err)
		}
	}
	return nil
}

// sweepReadyTimeouts cancels active duels whose ready deadline passed without
// every player confirming, refunding all stakes.
func (s *Sweeper) sweepReadyTimeouts(now time.Time) error {
	var ids []string
	err := s.DB.Model(&models.Duel{}).
		Where("status = ? AND ready_deadline IS NOT NULL AND ready_deadline < ?", models.DuelActive, now).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.cancelDuel(id, models.DuelActive, models.CancelReadyTimeout); err != nil {
			log.Printf("[Sweeper] cancel of unready duel %s failed: %v", id, err)
		}
	}
	return nil
}

// cancelDuel refunds every escrowed stake and flips the duel to cancelled,
// guarded on the status it was selected in. Losing the guard race is a no-op.
func (s *Sweeper) cancelDuel(duelID string, from models.DuelStatus, reason string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var duel models.Duel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&duel, "id = ?", duelID).Error; err != nil {
			return err
		}
		if duel.Status != from {
			return nil
		}
		if from == models.DuelActive {
			var players []models.DuelPlayer
			if err := tx.Where("duel_id = ?", duelID).Find(&players).Error; err != nil {
				return err
			}
			allReady := len(players) > 0
			for _, p := range players {
				if !p.Ready {
					allReady = false
				}
			}
			// Everyone confirmed in time; the deadline no longer applies.
			if allReady {
				return tx.Model(&duel).Update("ready_deadline", nil).Error
			}
		}

		res := tx.Model(&models.Duel{}).
			Where("id = ? AND status = ?", duelID, from).
			Updates(map[string]interface{}{
				"status":        models.DuelCancelled,
				"cancel_reason": reason,
				"ended_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var players []models.DuelPlayer
		if err := tx.Where("duel_id = ?", duelID).Find(&players).Error; err != nil {
			return err
		}
		ref := TxRef{RefID: duelID, RefKind: models.ReportRefDuel, Reason: reason}
		for _, p := range players {
			if err := s.Wallet.ReleaseEscrow(tx, p.UserID, duel.Currency, duel.Stake, ref); err != nil {
				return err
			}
		}
		return nil
	})
}
