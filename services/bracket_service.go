package services

import (
	"errors"
	"log"

	"github.com/Demideni/beavbet1-sub000/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BracketService owns the single-elimination bracket: seeding, round
// advancement and prize distribution. All bracket mutations serialize on the
// tournament row lock.
type BracketService struct {
	DB       *gorm.DB
	Wallet   *WalletService
	Provider MatchConfigProvider
	Notifier *GameServerNotifier
	Shuffler Shuffler
}

func NewBracketService(db *gorm.DB, wallet *WalletService, provider MatchConfigProvider, notifier *GameServerNotifier, shuffler Shuffler) *BracketService {
	return &BracketService{DB: db, Wallet: wallet, Provider: provider, Notifier: notifier, Shuffler: shuffler}
}

// StartIfFull seeds round 1 once the tournament reaches capacity. Entry fees
// move from escrow to the pool at this moment; before the start the sweeper
// or a cancel can still refund them. Safe to call repeatedly.
func (s *BracketService) StartIfFull(tournamentID string) error {
	var created []models.TournamentMatch
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&t, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if t.Status != models.TournamentOpen {
			return nil
		}
		var participants []models.TournamentParticipant
		if err := tx.Where("tournament_id = ?", tournamentID).
			Order("joined_at ASC").Find(&participants).Error; err != nil {
			return err
		}
		if len(participants) < t.MaxPlayers {
			return nil
		}

		res := tx.Model(&models.Tournament{}).
			Where("id = ? AND status = ?", t.ID, models.TournamentOpen).
			Update("status", models.TournamentLive)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		ref := TxRef{RefID: t.ID, RefKind: "tournament", Reason: "entry-fee"}
		userIDs := make([]string, 0, len(participants))
		for _, p := range participants {
			if t.EntryFee > 0 {
				if err := s.Wallet.ConsumeEscrow(tx, p.UserID, t.Currency, t.EntryFee, ref); err != nil {
					return err
				}
			}
			userIDs = append(userIDs, p.UserID)
		}

		s.Shuffler.Shuffle(len(userIDs), func(i, j int) {
			userIDs[i], userIDs[j] = userIDs[j], userIDs[i]
		})

		matches, err := s.createRound(tx, &t, 1, userIDs)
		if err != nil {
			return err
		}
		created = matches
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(created)
	return nil
}

// createRound pairs userIDs in order (0v1, 2v3, ...) into matches of the given
// round, reserving a map/server and minting credentials for each pairing.
func (s *BracketService) createRound(tx *gorm.DB, t *models.Tournament, round int, userIDs []string) ([]models.TournamentMatch, error) {
	matches := make([]models.TournamentMatch, 0, len(userIDs)/2)
	for i := 0; i+1 < len(userIDs); i += 2 {
		cfg := s.Provider.Reserve(t.Game)
		password, joinURL := s.Provider.Credentials(cfg.Server)
		m := models.TournamentMatch{
			ID:           uuid.NewString(),
			TournamentID: t.ID,
			Round:        round,
			Seq:          i / 2,
			Game:         t.Game,
			Map:          cfg.Map,
			Server:       cfg.Server,
			Credentials:  password,
			JoinURL:      joinURL,
			P1UserID:     userIDs[i],
			P2UserID:     userIDs[i+1],
			Status:       models.DuelOpen,
		}
		if err := tx.Create(&m).Error; err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *BracketService) notify(matches []models.TournamentMatch) {
	if s.Notifier == nil {
		return
	}
	for _, m := range matches {
		if m.Server != "" && m.Credentials != "" {
			s.Notifier.PushPassword(m.Server, m.Credentials)
		}
	}
}

// MaybeAdvance creates the next round once every match in the given round is
// done, or finalizes the tournament when the round produced a single winner.
// Idempotent: a redundant call observes the next round already exists and
// returns without effect.
func (s *BracketService) MaybeAdvance(tournamentID string, round int) error {
	var created []models.TournamentMatch
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&t, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if t.Status != models.TournamentLive {
			return nil
		}
		var matches []models.TournamentMatch
		if err := tx.Where("tournament_id = ? AND round = ?", tournamentID, round).
			Order("seq ASC").Find(&matches).Error; err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}
		winners := make([]string, 0, len(matches))
		for _, m := range matches {
			if m.Status != models.DuelDone || m.WinnerUserID == nil {
				return nil
			}
			winners = append(winners, *m.WinnerUserID)
		}

		if len(winners) == 1 {
			return s.finalizeTournament(tx, &t, matches[0])
		}

		var nextCount int64
		if err := tx.Model(&models.TournamentMatch{}).
			Where("tournament_id = ? AND round = ?", tournamentID, round+1).
			Count(&nextCount).Error; err != nil {
			return err
		}
		if nextCount > 0 {
			return nil
		}
		next, err := s.createRound(tx, &t, round+1, winners)
		if err != nil {
			return err
		}
		created = next
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(created)
	return nil
}

// finalizeTournament pays out the pool and closes the tournament. Payout
// split depends on bracket depth: 70/20/10 when a third place can be named
// (8+ entrants), 75/25 for a four-player bracket, winner-takes-all for two.
func (s *BracketService) finalizeTournament(tx *gorm.DB, t *models.Tournament, final models.TournamentMatch) error {
	res := tx.Model(&models.Tournament{}).
		Where("id = ? AND status = ?", t.ID, models.TournamentLive).
		Update("status", models.TournamentFinished)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	champion := *final.WinnerUserID
	runnerUp := final.Opponent(champion)
	third := s.thirdPlace(tx, t, final, champion)

	pool := t.Pool()
	type payout struct {
		userID    string
		amount    float64
		placement int
	}
	var payouts []payout
	switch {
	case t.MaxPlayers >= 8 && third != "":
		payouts = []payout{
			{champion, round2(pool * 0.70), 1},
			{runnerUp, round2(pool * 0.20), 2},
			{third, round2(pool * 0.10), 3},
		}
	case t.MaxPlayers >= 4:
		payouts = []payout{
			{champion, round2(pool * 0.75), 1},
			{runnerUp, round2(pool * 0.25), 2},
		}
	default:
		payouts = []payout{{champion, round2(pool), 1}}
	}

	for _, p := range payouts {
		// Free tournaments have an empty pool; there is nothing to move.
		if p.amount <= 0 {
			continue
		}
		ref := TxRef{RefID: t.ID, RefKind: "tournament", Reason: "payout", Placement: p.placement}
		if err := s.Wallet.Debit(tx, models.HouseUserID, t.Currency, p.amount, models.TxPrize, ref); err != nil {
			return err
		}
		if err := s.Wallet.Credit(tx, p.userID, t.Currency, p.amount, models.TxPrize, ref); err != nil {
			return err
		}
	}

	if err := tx.Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND user_id <> ?", t.ID, champion).
		Update("status", models.ParticipantEliminated).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.TournamentParticipant{}).
		Where("tournament_id = ? AND user_id = ?", t.ID, champion).
		Update("status", models.ParticipantWinner).Error; err != nil {
		return err
	}
	t.Status = models.TournamentFinished
	return nil
}

// thirdPlace names the semifinal loser eliminated by the eventual champion.
// Empty when the bracket has no semifinal round or the lookup fails; the
// payout split degrades to two places in that case.
func (s *BracketService) thirdPlace(tx *gorm.DB, t *models.Tournament, final models.TournamentMatch, champion string) string {
	if final.Round < 2 {
		return ""
	}
	var semis []models.TournamentMatch
	if err := tx.Where("tournament_id = ? AND round = ?", t.ID, final.Round-1).
		Find(&semis).Error; err != nil {
		log.Printf("[Bracket] third place lookup failed for %s: %v", t.ID, err)
		return ""
	}
	for _, m := range semis {
		if m.HasPlayer(champion) && m.WinnerUserID != nil && *m.WinnerUserID == champion {
			return m.Opponent(champion)
		}
	}
	return ""
}

// MatchReady marks the caller ready in their bracket match; when both slots
// are ready the match goes in_progress.
func (s *BracketService) MatchReady(userID, matchID string) (*models.TournamentMatch, error) {
	var match models.TournamentMatch
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("match %s not found", matchID)
			}
			return err
		}
		if match.Status.IsTerminal() {
			return Conflictf("match already settled")
		}
		if !match.HasPlayer(userID) {
			return Forbiddenf("not a participant of this match")
		}
		col := "p1_ready"
		if match.P2UserID == userID {
			col = "p2_ready"
		}
		if err := tx.Model(&match).Update(col, true).Error; err != nil {
			return err
		}
		if match.P1UserID == userID {
			match.P1Ready = true
		} else {
			match.P2Ready = true
		}
		if match.P1Ready && match.P2Ready && match.Status == models.DuelOpen {
			res := tx.Model(&models.TournamentMatch{}).
				Where("id = ? AND status = ?", match.ID, models.DuelOpen).
				Update("status", models.DuelInProgress)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				match.Status = models.DuelInProgress
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// --- HTTP surface ---

func (s *BracketService) MarkMatchReady(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	match, err := s.MatchReady(userID, c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(match)
}
